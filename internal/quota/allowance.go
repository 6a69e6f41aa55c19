package quota

import (
	"context"

	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// AllowanceStatus состояние одного источника лимита.
type AllowanceStatus struct {
	Present   bool // источник существует (для подписки: есть активная подписка)
	Available bool
	Remaining int
	Total     int
}

// Receipt результат списания.
type Receipt struct {
	Consumed       bool
	Remaining      int
	SubscriptionID string
}

// Allowance источник лимита тарифицируемых действий. Resolver и Consumer
// перебирают источники по порядку, первый доступный выигрывает.
type Allowance interface {
	Benefit() models.BenefitType
	Status(ctx context.Context, userUID string) (AllowanceStatus, error)
	Consume(ctx context.Context, userUID string) (Receipt, error)
}

// trialAllowance пробный лимит как источник.
type trialAllowance struct {
	tracker *TrialTracker
}

func (a trialAllowance) Benefit() models.BenefitType {
	return models.BenefitTrial
}

func (a trialAllowance) Status(ctx context.Context, userUID string) (AllowanceStatus, error) {
	st, err := a.tracker.Status(ctx, userUID)
	if err != nil {
		return AllowanceStatus{}, err
	}
	return AllowanceStatus{
		Present:   true,
		Available: st.Available,
		Remaining: st.Remaining,
		Total:     st.Total,
	}, nil
}

func (a trialAllowance) Consume(ctx context.Context, userUID string) (Receipt, error) {
	ok, remaining, err := a.tracker.consume(ctx, userUID)
	if err != nil || !ok {
		return Receipt{}, err
	}
	return Receipt{Consumed: true, Remaining: remaining}, nil
}

// subscriptionAllowance основная квота активной подписки.
type subscriptionAllowance struct {
	*base
	lifecycle *SubscriptionLifecycle
}

func (a subscriptionAllowance) Benefit() models.BenefitType {
	return models.BenefitSubscription
}

func (a subscriptionAllowance) Status(ctx context.Context, userUID string) (AllowanceStatus, error) {
	const op = "quota.subscriptionAllowance.Status"

	sub, err := a.lifecycle.Active(ctx, userUID)
	if err != nil || sub == nil {
		return AllowanceStatus{}, err
	}
	remaining := a.clampRemaining(op, "used_quota", userUID, sub.UsedQuota, sub.Quota)
	return AllowanceStatus{
		Present:   true,
		Available: remaining > 0,
		Remaining: remaining,
		Total:     sub.Quota,
	}, nil
}

func (a subscriptionAllowance) Consume(ctx context.Context, userUID string) (Receipt, error) {
	const op = "quota.subscriptionAllowance.Consume"

	for range MaxConflictRetries {
		sub, err := a.lifecycle.Active(ctx, userUID)
		if err != nil || sub == nil {
			return Receipt{}, err
		}
		if a.clampRemaining(op, "used_quota", userUID, sub.UsedQuota, sub.Quota) == 0 {
			return Receipt{}, nil
		}

		storeCtx, cancel := a.storeCtx(ctx)
		ok, err := a.store.IncrementSubscriptionUsedQuota(storeCtx, sub.ID, sub.UsedQuota, sub.Quota)
		cancel()
		if err != nil {
			return Receipt{}, a.storeFailure(op, userUID, err)
		}
		if ok {
			return Receipt{
				Consumed:       true,
				Remaining:      sub.Quota - sub.UsedQuota - 1,
				SubscriptionID: sub.ID,
			}, nil
		}
		a.metrics.Conflict(op)
	}

	a.conflictsExhausted(op, userUID)
	return Receipt{}, nil
}
