package models

// BenefitType источник, из которого списывается действие.
type BenefitType string

const (
	// BenefitTrial бесплатный пробный лимит.
	BenefitTrial BenefitType = "trial"
	// BenefitSubscription оплаченная квота подписки.
	BenefitSubscription BenefitType = "subscription"
	// BenefitNone ни один источник не доступен.
	BenefitNone BenefitType = "none"
)

// QuotaInfo итоговый ответ о доступности одного тарифицируемого действия.
type QuotaInfo struct {
	Available   bool        `json:"available"`
	Remaining   int         `json:"remaining"`
	Total       int         `json:"total"`
	BenefitType BenefitType `json:"benefit_type"`
}

// ReissueInfo состояние квоты на перевыпуск.
type ReissueInfo struct {
	Available bool `json:"available"`
	Remaining int  `json:"remaining"`
	Total     int  `json:"total"`
}
