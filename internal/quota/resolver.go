package quota

import (
	"context"

	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// Resolver отвечает, доступно ли сейчас одно тарифицируемое действие и из какого источника.
type Resolver struct {
	metrics    Metrics
	allowances []Allowance
}

// NewResolver создаёт Resolver над упорядоченным списком источников.
// Первый источник считается основным: при отказе его остаток и лимит попадают
// в ответ, если ни один из следующих источников не существует.
func NewResolver(metrics Metrics, allowances ...Allowance) *Resolver {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Resolver{metrics: metrics, allowances: allowances}
}

// CheckQuota возвращает первый доступный источник. Если доступных нет, ответ
// описывает последний существующий источник после основного, а при его отсутствии
// остаток основного с типом none. Не изменяет счётчики, кроме ленивых сбросов
// окна и перевода подписок в expired.
func (r *Resolver) CheckQuota(ctx context.Context, userUID string) (models.QuotaInfo, error) {
	info := models.QuotaInfo{BenefitType: models.BenefitNone}

	for i, a := range r.allowances {
		st, err := a.Status(ctx, userUID)
		if err != nil {
			r.metrics.QuotaChecked(models.BenefitNone, false)
			return models.QuotaInfo{BenefitType: models.BenefitNone}, err
		}
		if st.Available {
			info = models.QuotaInfo{
				Available:   true,
				Remaining:   st.Remaining,
				Total:       st.Total,
				BenefitType: a.Benefit(),
			}
			r.metrics.QuotaChecked(info.BenefitType, true)
			return info, nil
		}
		switch {
		case i == 0:
			info.Remaining, info.Total = st.Remaining, st.Total
		case st.Present:
			info = models.QuotaInfo{
				Remaining:   st.Remaining,
				Total:       st.Total,
				BenefitType: a.Benefit(),
			}
		}
	}

	r.metrics.QuotaChecked(info.BenefitType, false)
	return info, nil
}
