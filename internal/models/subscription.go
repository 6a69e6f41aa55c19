package models

import "time"

// SubscriptionStatus статус подписки.
type SubscriptionStatus string

const (
	// SubscriptionActive единственное начальное состояние подписки.
	SubscriptionActive SubscriptionStatus = "active"
	// SubscriptionExpired подписка, у которой истёк срок действия.
	SubscriptionExpired SubscriptionStatus = "expired"
	// SubscriptionCancelled подписка, отменённая администратором.
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription представляет оплаченную подписку пользователя с основной квотой
// и отдельной квотой на перевыпуск.
type Subscription struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_uid"`
	ProductID        string             `json:"product_id"`
	Status           SubscriptionStatus `json:"status"`
	StartDate        time.Time          `json:"start_date"`
	EndDate          time.Time          `json:"end_date"`
	Quota            int                `json:"quota"`
	UsedQuota        int                `json:"used_quota"`
	ReissueQuota     int                `json:"reissue_quota"`
	UsedReissueQuota int                `json:"used_reissue_quota"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// DummySubscription используется для приёма данных из JSON-запроса администратора,
// прежде чем конвертировать их в Subscription. Даты приходят строками в формате 02-01-2006.
// Срок задаётся либо EndDate, либо Months.
type DummySubscription struct {
	UserID       string `json:"user_uid" validate:"required"`
	ProductID    string `json:"product_id" validate:"required"`
	StartDate    string `json:"start_date" validate:"required"`
	EndDate      string `json:"end_date,omitempty"`
	Months       int    `json:"months,omitempty" validate:"gte=0"`
	Quota        int    `json:"quota" validate:"required,gt=0"`
	ReissueQuota int    `json:"reissue_quota" validate:"gte=0"`
}
