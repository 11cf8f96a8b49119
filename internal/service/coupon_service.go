package service

import (
	"context"
	"strings"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
)

type CouponService interface {
	Redeem(ctx context.Context, userID int64, code string) (int, error)
}

type couponService struct {
	cr repository.CouponRepository
}

func NewCouponService(cr repository.CouponRepository) CouponService {
	return &couponService{
		cr: cr,
	}
}

// Redeem credits the user with the coupon's value. Returns the number of
// credits granted.
func (s *couponService) Redeem(ctx context.Context, userID int64, code string) (int, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0, models.NewValidationError("coupon code cannot be empty")
	}

	coupon, exists, err := s.cr.GetByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, repository.ErrCouponNotFound
	}

	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(time.Now()) {
		return 0, repository.ErrCouponExpiredCode
	}

	if err := s.cr.Redeem(ctx, coupon.ID, userID, coupon.Credits); err != nil {
		return 0, err
	}

	return coupon.Credits, nil
}
