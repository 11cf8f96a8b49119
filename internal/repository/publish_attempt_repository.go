package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postpilothq/postpilot/internal/models"
)

type PublishAttemptRepository interface {
	Create(ctx context.Context, pa *models.PublishAttempt) (int64, error)
	ListByScheduleID(ctx context.Context, scheduleID int64) ([]*models.PublishAttempt, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.PublishAttempt, error)
}

type publishAttemptRepository struct {
	db *sql.DB
}

func NewPublishAttemptRepository(db *sql.DB) PublishAttemptRepository {
	return &publishAttemptRepository{db: db}
}

func (r *publishAttemptRepository) Create(ctx context.Context, pa *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (user_id, schedule_id, post_id, account_id, platform, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, pa.UserID, pa.ScheduleID, pa.PostID, pa.AccountID, pa.Platform, pa.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *publishAttemptRepository) ListByScheduleID(ctx context.Context, scheduleID int64) ([]*models.PublishAttempt, error) {
	query := `SELECT id, user_id, schedule_id, post_id, account_id, platform, error_message, created_at
		FROM publish_attempts WHERE schedule_id = $1 ORDER BY id`
	return r.listAttempts(ctx, query, scheduleID)
}

func (r *publishAttemptRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.PublishAttempt, error) {
	query := `SELECT id, user_id, schedule_id, post_id, account_id, platform, error_message, created_at
		FROM publish_attempts WHERE user_id = $1 ORDER BY id DESC`
	return r.listAttempts(ctx, query, userID)
}

func (r *publishAttemptRepository) listAttempts(ctx context.Context, query string, arg interface{}) ([]*models.PublishAttempt, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.PublishAttempt
	for rows.Next() {
		var pa models.PublishAttempt
		err := rows.Scan(&pa.ID, &pa.UserID, &pa.ScheduleID, &pa.PostID, &pa.AccountID, &pa.Platform, &pa.ErrorMessage, &pa.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		attempts = append(attempts, &pa)
	}
	return attempts, nil
}
