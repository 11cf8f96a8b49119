package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
)

type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, id int64) (*models.Subscription, bool, error)
	Create(ctx context.Context, subscription *models.Subscription) (int64, error)
	Update(ctx context.Context, subscription *models.Subscription) error
}

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, id int64) (*models.Subscription, bool, error) {
	var subscription models.Subscription
	query := "SELECT id, user_id, subscription_id, variant, renews_at, ends_at, status FROM subscriptions WHERE user_id = $1"
	err := r.db.QueryRowContext(ctx, query, id).Scan(&subscription.ID, &subscription.UserID, &subscription.SubscriptionID,
		&subscription.Variant, &subscription.RenewsAt, &subscription.EndsAt, &subscription.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return &subscription, true, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, subscription *models.Subscription) (int64, error) {
	query := "INSERT INTO subscriptions (user_id, subscription_id, variant, renews_at, ends_at, status) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id"
	var id int64
	err := r.db.QueryRowContext(ctx, query, subscription.UserID, subscription.SubscriptionID, subscription.Variant,
		subscription.RenewsAt, subscription.EndsAt, subscription.Status).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, subscription *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET variant = $1,
			renews_at = $2,
			ends_at = $3,
			status = $4,
			updated_at = $5
		WHERE user_id = $6
	`
	_, err := r.db.ExecContext(ctx, query, subscription.Variant, subscription.RenewsAt, subscription.EndsAt,
		subscription.Status, time.Now(), subscription.UserID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
