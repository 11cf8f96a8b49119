package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"
	"github.com/postpilothq/postpilot/internal/models"
)

var (
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrCouponExhausted      = errors.New("coupon redemption limit reached")
	ErrCouponAlreadyUsed    = errors.New("coupon already redeemed by this user")
	ErrCouponExpiredCode    = errors.New("coupon expired")
)

type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, bool, error)
	Create(ctx context.Context, coupon *models.Coupon) (int64, error)
	Redeem(ctx context.Context, couponID, userID int64, credits int) error
}

type couponRepository struct {
	db *sql.DB
}

func NewCouponRepository(db *sql.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, bool, error) {
	query := `SELECT id, code, credits, max_redemptions, redeemed_count, expires_at, created_at FROM coupons WHERE code = $1`

	var c models.Coupon
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, code).Scan(&c.ID, &c.Code, &c.Credits, &c.MaxRedemptions, &c.RedeemedCount, &expiresAt, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	return &c, true, nil
}

func (r *couponRepository) Create(ctx context.Context, coupon *models.Coupon) (int64, error) {
	query := `INSERT INTO coupons (code, credits, max_redemptions, expires_at) VALUES ($1, $2, $3, $4) RETURNING id`

	var expiresAt sql.NullTime
	if coupon.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *coupon.ExpiresAt, Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query, coupon.Code, coupon.Credits, coupon.MaxRedemptions, expiresAt).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

// Redeem records the redemption, bumps the coupon counter and grants the
// credits in one transaction. A unique index on (coupon_id, user_id) rejects
// double redemption; the counter guard rejects exhausted coupons.
func (r *couponRepository) Redeem(ctx context.Context, couponID, userID int64, credits int) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	insertQuery := `INSERT INTO coupon_redemptions (coupon_id, user_id) VALUES ($1, $2)`
	if _, err = tx.ExecContext(ctx, insertQuery, couponID, userID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrCouponAlreadyUsed
		}
		slog.Info(err.Error())
		return err
	}

	counterQuery := `
		UPDATE coupons
		SET redeemed_count = redeemed_count + 1
		WHERE id = $1 AND redeemed_count < max_redemptions
	`
	result, err := tx.ExecContext(ctx, counterQuery, couponID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrCouponExhausted
	}

	creditQuery := `UPDATE users SET credits = credits + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if _, err = tx.ExecContext(ctx, creditQuery, credits, userID); err != nil {
		slog.Info(err.Error())
		return err
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
