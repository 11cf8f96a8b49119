package models

import (
	"time"
)

type Subscription struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	SubscriptionID string    `db:"subscription_id" json:"subscription_id"`
	Variant        string    `db:"variant" json:"variant"`
	RenewsAt       time.Time `db:"renews_at" json:"renews_at"`
	EndsAt         time.Time `db:"ends_at" json:"ends_at"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
