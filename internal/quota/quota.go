// Package quota решает, может ли пользователь выполнить тарифицируемое действие
// (выпуск или перевыпуск документа), и списывает единицу нужного лимита.
//
// Доступ складывается из двух независимых источников: бесплатного пробного лимита,
// который обновляется скользящим окном, и оплаченной подписки с основной квотой
// и отдельной квотой на перевыпуск. Пробный лимит всегда имеет приоритет.
//
// Пакет не кеширует счётчики: каждое решение перечитывает хранилище, а каждое
// изменение выполняется одной условной операцией хранилища.
package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/issue-quota/internal/lib/clock"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/models"
)

const (
	// TrialLimit количество бесплатных действий в одном окне.
	TrialLimit = 3
	// TrialWindow длина скользящего окна пробного периода.
	TrialWindow = 7 * 24 * time.Hour
	// MaxConflictRetries сколько раз условная запись повторяется после проигранной гонки.
	MaxConflictRetries = 5
	// DefaultStoreTimeout таймаут одного обращения к хранилищу по умолчанию.
	DefaultStoreTimeout = 3 * time.Second
)

// RecordStore хранилище записей пользователя и подписок.
// Все методы изменения условные и возвращают false, если запись успела измениться.
type RecordStore interface {
	// GetUserTrialState возвращает счётчики пробного периода или nil, если записи нет.
	GetUserTrialState(ctx context.Context, userUID string) (*models.TrialState, error)
	// SetUserTrialState записывает next, если текущее состояние равно expected.
	SetUserTrialState(ctx context.Context, userUID string, expected *models.TrialState, next models.TrialState) (bool, error)
	// GetActiveSubscription возвращает последнюю созданную активную подписку
	// или ошибку storage.ErrSubscriptionNotFound.
	GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	// UpdateSubscriptionStatus переводит подписку из статуса from в статус to.
	UpdateSubscriptionStatus(ctx context.Context, id string, from, to models.SubscriptionStatus) (bool, error)
	// IncrementSubscriptionUsedQuota увеличивает used_quota, если оно равно expected и меньше ceiling.
	IncrementSubscriptionUsedQuota(ctx context.Context, id string, expected, ceiling int) (bool, error)
	// IncrementSubscriptionUsedReissueQuota то же для used_reissue_quota.
	IncrementSubscriptionUsedReissueQuota(ctx context.Context, id string, expected, ceiling int) (bool, error)
}

// OverdueFinder находит активные подписки, срок которых уже закончился.
type OverdueFinder interface {
	FindOverdueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error)
}

// Publisher отправляет события об изменении счётчиков. Ошибка публикации
// только логируется и не влияет на результат операции.
type Publisher interface {
	Publish(ctx context.Context, event models.UsageEvent) error
}

// Metrics собирает счётчики работы движка.
type Metrics interface {
	QuotaChecked(benefit models.BenefitType, available bool)
	Consumed(kind string, benefit models.BenefitType)
	Denied(kind string)
	StoreError(op string)
	Conflict(op string)
	InvariantViolation(counter string)
	SubscriptionExpired()
}

// Locker берёт взаимное исключение на время операции пользователя.
// Возвращённый lockCtx отменяется не позже, чем истекает блокировка:
// операция, переживающая блокировку, завершается с ошибкой хранилища.
type Locker interface {
	Lock(ctx context.Context, key string) (lockCtx context.Context, unlock func(), err error)
}

// Виды списания для метрик.
const (
	KindQuota   = "quota"
	KindReissue = "reissue"
)

type nopMetrics struct{}

func (nopMetrics) QuotaChecked(models.BenefitType, bool) {}
func (nopMetrics) Consumed(string, models.BenefitType)   {}
func (nopMetrics) Denied(string)                         {}
func (nopMetrics) StoreError(string)                     {}
func (nopMetrics) Conflict(string)                       {}
func (nopMetrics) InvariantViolation(string)             {}
func (nopMetrics) SubscriptionExpired()                  {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.UsageEvent) error { return nil }

// base общие зависимости компонентов движка.
type base struct {
	store     RecordStore
	clock     clock.Clock
	log       *slog.Logger
	metrics   Metrics
	publisher Publisher
	timeout   time.Duration
}

// storeCtx ограничивает одно обращение к хранилищу таймаутом.
func (b *base) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

func (b *base) publish(ctx context.Context, event models.UsageEvent) {
	event.OccurredAt = b.clock.Now()
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.log.Warn("failed to publish usage event",
			slog.String("type", string(event.Type)),
			sl.UserUID(event.UserID),
			sl.Err(err))
	}
}

// clampRemaining возвращает total - used, не меньше нуля. Превышение used над total
// возможно только при нарушении инварианта и логируется.
func (b *base) clampRemaining(op, counter, userUID string, used, total int) int {
	if used > total {
		b.metrics.InvariantViolation(counter)
		b.log.Warn("counter exceeds its ceiling",
			sl.Op(op),
			slog.String("counter", counter),
			sl.UserUID(userUID),
			slog.Int("used", used),
			slog.Int("total", total))
		return 0
	}
	return total - used
}
