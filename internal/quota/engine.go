package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/issue-quota/internal/lib/clock"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// lockPrefix префикс ключа блокировки пользователя.
const lockPrefix = "quota:lock:"

// Engine точка входа движка квот. Проверяет идентификатор пользователя и
// собирает компоненты над одним хранилищем и одними часами.
type Engine struct {
	*base
	locker    Locker
	trial     *TrialTracker
	lifecycle *SubscriptionLifecycle
	resolver  *Resolver
	consumer  *Consumer
	reissue   *ReissueTracker
}

// Option настраивает Engine.
type Option func(*Engine)

// WithClock задаёт источник времени.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger задаёт логгер.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics задаёт сборщик метрик.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPublisher задаёт публикатор событий.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLocker включает блокировку пользователя на время списания.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithStoreTimeout задаёт таймаут одного обращения к хранилищу.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New создаёт Engine над хранилищем store.
func New(store RecordStore, opts ...Option) *Engine {
	e := &Engine{
		base: &base{
			store:     store,
			clock:     clock.Real{},
			log:       sl.Discard(),
			metrics:   nopMetrics{},
			publisher: nopPublisher{},
			timeout:   DefaultStoreTimeout,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(slog.String("component", "quota"))

	e.trial = &TrialTracker{base: e.base}
	e.lifecycle = &SubscriptionLifecycle{base: e.base}
	allowances := []Allowance{
		trialAllowance{tracker: e.trial},
		subscriptionAllowance{base: e.base, lifecycle: e.lifecycle},
	}
	e.resolver = NewResolver(e.metrics, allowances...)
	e.consumer = &Consumer{base: e.base, allowances: allowances}
	e.reissue = &ReissueTracker{base: e.base, lifecycle: e.lifecycle}
	return e
}

// CheckQuota сообщает, доступно ли пользователю одно тарифицируемое действие.
func (e *Engine) CheckQuota(ctx context.Context, userUID string) (models.QuotaInfo, error) {
	const op = "quota.Engine.CheckQuota"

	if userUID == "" {
		return models.QuotaInfo{BenefitType: models.BenefitNone}, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	return e.resolver.CheckQuota(ctx, userUID)
}

// Consume списывает одно действие из пробного лимита или основной квоты подписки.
func (e *Engine) Consume(ctx context.Context, userUID string) (bool, error) {
	const op = "quota.Engine.Consume"

	if userUID == "" {
		return false, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	lockCtx, unlock, err := e.lock(ctx, op, userUID)
	if err != nil {
		e.metrics.Denied(KindQuota)
		return false, err
	}
	defer unlock()

	return e.consumer.Consume(lockCtx, userUID)
}

// TrialStatus возвращает состояние пробного периода пользователя.
func (e *Engine) TrialStatus(ctx context.Context, userUID string) (models.TrialStatus, error) {
	const op = "quota.Engine.TrialStatus"

	if userUID == "" {
		return models.TrialStatus{Total: TrialLimit}, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	return e.trial.Status(ctx, userUID)
}

// ActiveSubscription возвращает действующую подписку пользователя или nil.
func (e *Engine) ActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "quota.Engine.ActiveSubscription"

	if userUID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	return e.lifecycle.Active(ctx, userUID)
}

// CheckReissue возвращает остаток квоты перевыпуска.
func (e *Engine) CheckReissue(ctx context.Context, userUID string) (models.ReissueInfo, error) {
	const op = "quota.Engine.CheckReissue"

	if userUID == "" {
		return models.ReissueInfo{}, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	return e.reissue.Check(ctx, userUID)
}

// ConsumeReissue списывает одну единицу квоты перевыпуска.
func (e *Engine) ConsumeReissue(ctx context.Context, userUID string) (bool, error) {
	const op = "quota.Engine.ConsumeReissue"

	if userUID == "" {
		return false, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	lockCtx, unlock, err := e.lock(ctx, op, userUID)
	if err != nil {
		e.metrics.Denied(KindReissue)
		return false, err
	}
	defer unlock()

	return e.reissue.Consume(lockCtx, userUID)
}

// ExpireOverdue переводит в expired до limit просроченных активных подписок,
// не дожидаясь, пока их прочитает пользователь.
func (e *Engine) ExpireOverdue(ctx context.Context, finder OverdueFinder, limit int) (int, error) {
	return e.lifecycle.ExpireOverdue(ctx, finder, limit)
}

func (e *Engine) lock(ctx context.Context, op, userUID string) (context.Context, func(), error) {
	if e.locker == nil {
		return ctx, func() {}, nil
	}
	lockCtx, unlock, err := e.locker.Lock(ctx, lockPrefix+userUID)
	if err != nil {
		e.log.Error("failed to take user lock",
			sl.Op(op),
			sl.UserUID(userUID),
			sl.Err(err))
		return nil, nil, fmt.Errorf("%s: %w", op, ErrLockUnavailable)
	}
	return lockCtx, unlock, nil
}
