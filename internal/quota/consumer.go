package quota

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// Consumer списывает ровно одну единицу ровно одного источника, соблюдая тот же
// порядок, что и Resolver: пока есть пробный лимит, оплаченная квота не тратится.
type Consumer struct {
	*base
	allowances []Allowance
}

// Consume возвращает true, если какой-то счётчик действительно был увеличен.
func (c *Consumer) Consume(ctx context.Context, userUID string) (bool, error) {
	for _, a := range c.allowances {
		receipt, err := a.Consume(ctx, userUID)
		if err != nil {
			c.metrics.Denied(KindQuota)
			return false, err
		}
		if !receipt.Consumed {
			continue
		}

		c.metrics.Consumed(KindQuota, a.Benefit())
		c.log.Info("quota consumed",
			sl.UserUID(userUID),
			slog.String("benefit_type", string(a.Benefit())),
			slog.Int("remaining", receipt.Remaining))
		c.publish(ctx, models.UsageEvent{
			Type:           models.EventQuotaConsumed,
			UserID:         userUID,
			SubscriptionID: receipt.SubscriptionID,
			BenefitType:    a.Benefit(),
			Remaining:      receipt.Remaining,
		})
		return true, nil
	}

	c.metrics.Denied(KindQuota)
	return false, nil
}
