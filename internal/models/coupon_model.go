package models

import "time"

type Coupon struct {
	ID             int64      `db:"id" json:"id"`
	Code           string     `db:"code" json:"code"`
	Credits        int        `db:"credits" json:"credits"`
	MaxRedemptions int        `db:"max_redemptions" json:"max_redemptions"`
	RedeemedCount  int        `db:"redeemed_count" json:"redeemed_count"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type CouponRedemption struct {
	ID        int64     `db:"id" json:"id"`
	CouponID  int64     `db:"coupon_id" json:"coupon_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
