package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/transfer"
)

// Monthly credit grants per plan variant.
const (
	CreditsStarter = 50
	CreditsGrowth  = 200
	CreditsAgency  = 1000
)

type SubscriptionService interface {
	HandleEvent(ctx context.Context, payload *transfer.LemonSqueezyEvent) error
	Info(ctx context.Context, userID int64) (*models.Subscription, error)
}

type subscriptionService struct {
	u repository.UserRepository
	s repository.SubscriptionRepository
}

func NewSubscriptionService(u repository.UserRepository, s repository.SubscriptionRepository) SubscriptionService {
	return &subscriptionService{
		u: u,
		s: s,
	}
}

// HandleEvent applies a Lemon Squeezy webhook. The user id travels in the
// checkout custom data; payment events also top up the plan's credits.
func (s *subscriptionService) HandleEvent(ctx context.Context, payload *transfer.LemonSqueezyEvent) error {
	userID, err := strconv.ParseInt(payload.Meta.CustomData.UserID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user_id in webhook custom data: %w", err)
	}

	attrs := payload.Data.Attributes

	switch payload.Meta.EventName {
	case "subscription_created", "subscription_updated", "subscription_resumed",
		"subscription_cancelled", "subscription_expired":
		subscriptionInfo := &models.Subscription{
			UserID:         userID,
			SubscriptionID: payload.Data.ID,
			Variant:        attrs.VariantName,
			RenewsAt:       attrs.RenewsAt,
			EndsAt:         attrs.EndsAt,
			Status:         attrs.Status,
		}

		_, exists, err := s.s.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			_, err = s.s.Create(ctx, subscriptionInfo)
		} else {
			err = s.s.Update(ctx, subscriptionInfo)
		}
		if err != nil {
			return err
		}

	case "subscription_payment_success":
		credits := creditsForVariant(attrs.VariantName)
		if credits > 0 {
			if err := s.u.AddCredits(ctx, nil, userID, credits); err != nil {
				return err
			}
		}

	default:
		slog.Info("Unhandled webhook event: " + payload.Meta.EventName)
	}

	return nil
}

func (s *subscriptionService) Info(ctx context.Context, userID int64) (*models.Subscription, error) {
	subscription, exists, err := s.s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return subscription, nil
}

func creditsForVariant(variant string) int {
	switch strings.ToLower(variant) {
	case "starter":
		return CreditsStarter
	case "growth":
		return CreditsGrowth
	case "agency":
		return CreditsAgency
	}
	return 0
}
