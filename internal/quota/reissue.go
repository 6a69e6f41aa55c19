package quota

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// ReissueTracker ведёт квоту перевыпуска активной подписки. Она не зависит от
// основной квоты; у пользователей без подписки перевыпуска нет.
type ReissueTracker struct {
	*base
	lifecycle *SubscriptionLifecycle
}

// Check возвращает остаток квоты перевыпуска. Без активной подписки все значения нулевые.
func (r *ReissueTracker) Check(ctx context.Context, userUID string) (models.ReissueInfo, error) {
	const op = "quota.ReissueTracker.Check"

	sub, err := r.lifecycle.Active(ctx, userUID)
	if err != nil || sub == nil {
		return models.ReissueInfo{}, err
	}
	remaining := r.clampRemaining(op, "used_reissue_quota", userUID, sub.UsedReissueQuota, sub.ReissueQuota)
	return models.ReissueInfo{
		Available: remaining > 0,
		Remaining: remaining,
		Total:     sub.ReissueQuota,
	}, nil
}

// Consume списывает одну единицу квоты перевыпуска. Возвращает false, если
// активной подписки нет или квота исчерпана.
func (r *ReissueTracker) Consume(ctx context.Context, userUID string) (bool, error) {
	const op = "quota.ReissueTracker.Consume"

	for range MaxConflictRetries {
		sub, err := r.lifecycle.Active(ctx, userUID)
		if err != nil {
			r.metrics.Denied(KindReissue)
			return false, err
		}
		if sub == nil ||
			r.clampRemaining(op, "used_reissue_quota", userUID, sub.UsedReissueQuota, sub.ReissueQuota) == 0 {
			r.metrics.Denied(KindReissue)
			return false, nil
		}

		storeCtx, cancel := r.storeCtx(ctx)
		ok, err := r.store.IncrementSubscriptionUsedReissueQuota(storeCtx, sub.ID, sub.UsedReissueQuota, sub.ReissueQuota)
		cancel()
		if err != nil {
			r.metrics.Denied(KindReissue)
			return false, r.storeFailure(op, userUID, err)
		}
		if !ok {
			r.metrics.Conflict(op)
			continue
		}

		remaining := sub.ReissueQuota - sub.UsedReissueQuota - 1
		r.metrics.Consumed(KindReissue, models.BenefitSubscription)
		r.log.Info("reissue quota consumed",
			sl.UserUID(userUID),
			slog.String("subscription_id", sub.ID),
			slog.Int("remaining", remaining))
		r.publish(ctx, models.UsageEvent{
			Type:           models.EventReissueConsumed,
			UserID:         userUID,
			SubscriptionID: sub.ID,
			BenefitType:    models.BenefitSubscription,
			Remaining:      remaining,
		})
		return true, nil
	}

	r.conflictsExhausted(op, userUID)
	r.metrics.Denied(KindReissue)
	return false, nil
}
