// Package metrics собирает счётчики движка квот и HTTP-слоя в Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/issue-quota/internal/models"
)

const namespace = "quota"

// Metrics реализует quota.Metrics поверх Prometheus.
type Metrics struct {
	checksTotal         *prometheus.CounterVec
	consumedTotal       *prometheus.CounterVec
	deniedTotal         *prometheus.CounterVec
	storeErrorsTotal    *prometheus.CounterVec
	conflictsTotal      *prometheus.CounterVec
	invariantViolations *prometheus.CounterVec
	expiredTotal        prometheus.Counter
	requestDuration     *prometheus.HistogramVec
}

// New регистрирует счётчики в registerer. Повторная регистрация в том же
// registerer возвращает уже зарегистрированные коллекторы.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Quota checks by resolved benefit type and outcome.",
			},
			[]string{"benefit_type", "available"},
		),
		consumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consumed_total",
				Help:      "Units consumed by kind and benefit type.",
			},
			[]string{"kind", "benefit_type"},
		),
		deniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "denied_total",
				Help:      "Consume calls that did not consume anything.",
			},
			[]string{"kind"},
		),
		storeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Record store calls that failed or timed out.",
			},
			[]string{"op"},
		),
		conflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflicts_total",
				Help:      "Conditional updates that lost a race and were retried.",
			},
			[]string{"op"},
		),
		invariantViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invariant_violations_total",
				Help:      "Stored counters found above their ceiling.",
			},
			[]string{"counter"},
		),
		expiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscriptions_expired_total",
				Help:      "Subscriptions moved to expired.",
			},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration by route and status.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route", "status"},
		),
	}

	m.checksTotal = register(registerer, m.checksTotal)
	m.consumedTotal = register(registerer, m.consumedTotal)
	m.deniedTotal = register(registerer, m.deniedTotal)
	m.storeErrorsTotal = register(registerer, m.storeErrorsTotal)
	m.conflictsTotal = register(registerer, m.conflictsTotal)
	m.invariantViolations = register(registerer, m.invariantViolations)
	m.expiredTotal = register(registerer, m.expiredTotal)
	m.requestDuration = register(registerer, m.requestDuration)

	return m
}

func register[T prometheus.Collector](registerer prometheus.Registerer, c T) T {
	if err := registerer.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func label(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// QuotaChecked учитывает одну проверку квоты.
func (m *Metrics) QuotaChecked(benefit models.BenefitType, available bool) {
	m.checksTotal.WithLabelValues(label(string(benefit)), strconv.FormatBool(available)).Inc()
}

// Consumed учитывает одну списанную единицу.
func (m *Metrics) Consumed(kind string, benefit models.BenefitType) {
	m.consumedTotal.WithLabelValues(label(kind), label(string(benefit))).Inc()
}

// Denied учитывает отказ в списании.
func (m *Metrics) Denied(kind string) {
	m.deniedTotal.WithLabelValues(label(kind)).Inc()
}

// StoreError учитывает сбой обращения к хранилищу.
func (m *Metrics) StoreError(op string) {
	m.storeErrorsTotal.WithLabelValues(label(op)).Inc()
}

// Conflict учитывает проигранную условную запись.
func (m *Metrics) Conflict(op string) {
	m.conflictsTotal.WithLabelValues(label(op)).Inc()
}

// InvariantViolation учитывает счётчик, превысивший свой лимит.
func (m *Metrics) InvariantViolation(counter string) {
	m.invariantViolations.WithLabelValues(label(counter)).Inc()
}

// SubscriptionExpired учитывает перевод подписки в expired.
func (m *Metrics) SubscriptionExpired() {
	m.expiredTotal.Inc()
}

// ObserveRequest учитывает обработанный HTTP-запрос.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, label(route), strconv.Itoa(status)).Observe(elapsed.Seconds())
}
