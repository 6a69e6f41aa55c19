package models

import "time"

// EventType тип события использования квоты.
type EventType string

const (
	// EventQuotaConsumed списана единица основной квоты или пробного лимита.
	EventQuotaConsumed EventType = "quota.consumed"
	// EventReissueConsumed списана единица квоты перевыпуска.
	EventReissueConsumed EventType = "reissue.consumed"
	// EventSubscriptionExpired подписка переведена в статус expired.
	EventSubscriptionExpired EventType = "subscription.expired"
)

// UsageEvent сообщение, публикуемое в брокер после изменения счётчиков.
type UsageEvent struct {
	Type           EventType   `json:"type"`
	UserID         string      `json:"user_uid"`
	SubscriptionID string      `json:"subscription_id,omitempty"`
	BenefitType    BenefitType `json:"benefit_type,omitempty"`
	Remaining      int         `json:"remaining"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
