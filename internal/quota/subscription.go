package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/models"
	"github.com/magabrotheeeer/issue-quota/internal/storage"
)

// maxExpirations сколько просроченных подписок подряд Active переводит в expired за один вызов.
const maxExpirations = 10

// SubscriptionLifecycle находит действующую подписку пользователя и лениво
// переводит просроченные подписки в статус expired при чтении.
type SubscriptionLifecycle struct {
	*base
}

// Active возвращает последнюю созданную активную подписку пользователя или nil.
// Подписка с истёкшей датой окончания переводится в expired и не возвращается;
// после этого проверяется следующая активная подписка, если она есть.
func (l *SubscriptionLifecycle) Active(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "quota.SubscriptionLifecycle.Active"

	for range maxExpirations {
		sub, err := l.load(ctx, userUID)
		if errors.Is(err, storage.ErrSubscriptionNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, l.storeFailure(op, userUID, err)
		}

		now := l.clock.Now()
		if !sub.EndDate.Before(now) {
			return sub, nil
		}

		if _, err := l.expire(ctx, sub); err != nil {
			return nil, l.storeFailure(op, userUID, err)
		}
	}

	l.log.Warn("too many expired subscriptions in one read",
		sl.Op(op),
		sl.UserUID(userUID))
	return nil, nil
}

// expire переводит подписку в expired. Возвращает false, если статус уже изменил
// другой запрос.
func (l *SubscriptionLifecycle) expire(ctx context.Context, sub *models.Subscription) (bool, error) {
	storeCtx, cancel := l.storeCtx(ctx)
	defer cancel()

	ok, err := l.store.UpdateSubscriptionStatus(storeCtx, sub.ID, models.SubscriptionActive, models.SubscriptionExpired)
	if err != nil || !ok {
		return false, err
	}

	l.metrics.SubscriptionExpired()
	l.log.Info("subscription expired",
		sl.UserUID(sub.UserID),
		slog.String("subscription_id", sub.ID),
		slog.Time("end_date", sub.EndDate))
	l.publish(ctx, models.UsageEvent{
		Type:           models.EventSubscriptionExpired,
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		BenefitType:    models.BenefitSubscription,
	})
	return true, nil
}

// ExpireOverdue переводит в expired до limit активных подписок с прошедшей датой
// окончания и возвращает, сколько переведено.
func (l *SubscriptionLifecycle) ExpireOverdue(ctx context.Context, finder OverdueFinder, limit int) (int, error) {
	const op = "quota.SubscriptionLifecycle.ExpireOverdue"

	storeCtx, cancel := l.storeCtx(ctx)
	subs, err := finder.FindOverdueSubscriptions(storeCtx, l.clock.Now(), limit)
	cancel()
	if err != nil {
		l.metrics.StoreError(op)
		return 0, fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}

	expired := 0
	for _, sub := range subs {
		ok, err := l.expire(ctx, sub)
		if err != nil {
			l.metrics.StoreError(op)
			l.log.Error("failed to expire subscription",
				sl.Op(op),
				slog.String("subscription_id", sub.ID),
				sl.Err(err))
			return expired, fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (l *SubscriptionLifecycle) load(ctx context.Context, userUID string) (*models.Subscription, error) {
	ctx, cancel := l.storeCtx(ctx)
	defer cancel()
	return l.store.GetActiveSubscription(ctx, userUID)
}
