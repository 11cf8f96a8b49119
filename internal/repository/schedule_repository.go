package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/postpilothq/postpilot/internal/models"
)

// ErrDuplicateSchedule is returned when a non-cancelled schedule already
// exists for the same (post_id, platform, social_account_id) tuple. The
// uniqueness is enforced by a partial unique index so concurrent creates
// cannot both slip through.
var ErrDuplicateSchedule = errors.New("schedule already exists for this post, platform and account")

const scheduleColumns = `id, user_id, post_id, variant_id, platform, social_account_id,
	scheduled_for, status, retry_count, max_retries, next_retry_at, claimed_at,
	published_at, published_post_id, published_url, error_message, created_at, updated_at`

type ScheduleRepository interface {
	Create(ctx context.Context, tx *sql.Tx, s *models.Schedule) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Schedule, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.Schedule, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Schedule, error)
	DueNow(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	DueForRetry(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	Claim(ctx context.Context, id int64, now time.Time) (*models.Schedule, bool, error)
	ReleaseStale(ctx context.Context, now time.Time, lease time.Duration) (int64, error)
	MarkPublished(ctx context.Context, id int64, publishedAt time.Time, platformPostID, url string) (bool, error)
	Rearm(ctx context.Context, id int64, retryCount int, nextRetryAt time.Time, errMsg string) (bool, error)
	MarkFailed(ctx context.Context, id int64, retryCount int, errMsg string) (bool, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	CountPendingByPostID(ctx context.Context, postID int64) (int, error)
}

type scheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Create(ctx context.Context, tx *sql.Tx, s *models.Schedule) (int64, error) {
	query := `
		INSERT INTO schedules (user_id, post_id, variant_id, platform, social_account_id, scheduled_for, status, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var variantID sql.NullInt64
	if s.VariantID != nil {
		variantID = sql.NullInt64{Int64: *s.VariantID, Valid: true}
	}

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, s.UserID, s.PostID, variantID, s.Platform, s.SocialAccountID, s.ScheduledFor, models.ScheduleStatusPending, s.MaxRetries).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, s.UserID, s.PostID, variantID, s.Platform, s.SocialAccountID, s.ScheduledFor, models.ScheduleStatusPending, s.MaxRetries).Scan(&id)
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrDuplicateSchedule
		}
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id int64) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	s, err := scanSchedule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return s, nil
}

func (r *scheduleRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE post_id = $1 ORDER BY scheduled_for, id`
	return r.list(ctx, query, postID)
}

func (r *scheduleRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE user_id = $1 ORDER BY scheduled_for DESC, id DESC`
	return r.list(ctx, query, userID)
}

// DueNow returns pending schedules whose original time has arrived, earliest
// first. Retry re-arms are excluded; DueForRetry covers those.
func (r *scheduleRepository) DueNow(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules
		WHERE status = 'pending' AND next_retry_at IS NULL AND scheduled_for <= $1
		ORDER BY scheduled_for, id`
	return r.list(ctx, query, now)
}

func (r *scheduleRepository) DueForRetry(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules
		WHERE status = 'pending' AND next_retry_at IS NOT NULL AND next_retry_at <= $1
		ORDER BY next_retry_at, id`
	return r.list(ctx, query, now)
}

// Claim atomically moves a pending schedule to processing. The returned bool
// is false when the row was already claimed, cancelled or published, which
// makes re-dispatch on the same id a safe no-op.
func (r *scheduleRepository) Claim(ctx context.Context, id int64, now time.Time) (*models.Schedule, bool, error) {
	query := `
		UPDATE schedules
		SET status = 'processing',
			claimed_at = $2,
			updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + scheduleColumns

	row := r.db.QueryRowContext(ctx, query, id, now)
	s, err := scanSchedule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}
	return s, true, nil
}

// ReleaseStale re-arms processing rows whose claim outlived the lease, so a
// dispatcher crash cannot strand a schedule in processing forever.
func (r *scheduleRepository) ReleaseStale(ctx context.Context, now time.Time, lease time.Duration) (int64, error) {
	query := `
		UPDATE schedules
		SET status = 'pending',
			claimed_at = NULL,
			updated_at = $1
		WHERE status = 'processing' AND claimed_at < $2
	`
	result, err := r.db.ExecContext(ctx, query, now, now.Add(-lease))
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

func (r *scheduleRepository) MarkPublished(ctx context.Context, id int64, publishedAt time.Time, platformPostID, url string) (bool, error) {
	query := `
		UPDATE schedules
		SET status = 'published',
			published_at = $2,
			published_post_id = $3,
			published_url = $4,
			next_retry_at = NULL,
			error_message = '',
			updated_at = $5
		WHERE id = $1 AND status = 'processing'
	`
	return r.conditionalUpdate(ctx, query, id, publishedAt, platformPostID, url, time.Now())
}

func (r *scheduleRepository) Rearm(ctx context.Context, id int64, retryCount int, nextRetryAt time.Time, errMsg string) (bool, error) {
	query := `
		UPDATE schedules
		SET status = 'pending',
			retry_count = $2,
			next_retry_at = $3,
			error_message = $4,
			claimed_at = NULL,
			updated_at = $5
		WHERE id = $1 AND status = 'processing'
	`
	return r.conditionalUpdate(ctx, query, id, retryCount, nextRetryAt, errMsg, time.Now())
}

func (r *scheduleRepository) MarkFailed(ctx context.Context, id int64, retryCount int, errMsg string) (bool, error) {
	query := `
		UPDATE schedules
		SET status = 'failed',
			retry_count = $2,
			next_retry_at = NULL,
			error_message = $3,
			updated_at = $4
		WHERE id = $1 AND status = 'processing'
	`
	return r.conditionalUpdate(ctx, query, id, retryCount, errMsg, time.Now())
}

// Cancel transitions any non-terminal schedule to cancelled. Returns false
// when the row is already published or cancelled (or missing).
func (r *scheduleRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE schedules
		SET status = 'cancelled',
			next_retry_at = NULL,
			updated_at = $2
		WHERE id = $1 AND status NOT IN ('published', 'cancelled')
	`
	return r.conditionalUpdate(ctx, query, id, time.Now())
}

func (r *scheduleRepository) CountPendingByPostID(ctx context.Context, postID int64) (int, error) {
	query := `SELECT COUNT(*) FROM schedules WHERE post_id = $1 AND status IN ('pending', 'processing')`

	var count int
	err := r.db.QueryRowContext(ctx, query, postID).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *scheduleRepository) conditionalUpdate(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *scheduleRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		schedules = append(schedules, s)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return schedules, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var s models.Schedule
	var variantID sql.NullInt64
	var nextRetryAt, claimedAt, publishedAt sql.NullTime
	var publishedPostID, publishedURL, errorMessage sql.NullString

	err := row.Scan(&s.ID, &s.UserID, &s.PostID, &variantID, &s.Platform, &s.SocialAccountID,
		&s.ScheduledFor, &s.Status, &s.RetryCount, &s.MaxRetries, &nextRetryAt, &claimedAt,
		&publishedAt, &publishedPostID, &publishedURL, &errorMessage, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if variantID.Valid {
		s.VariantID = &variantID.Int64
	}
	if nextRetryAt.Valid {
		t := nextRetryAt.Time
		s.NextRetryAt = &t
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		s.ClaimedAt = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		s.PublishedAt = &t
	}
	s.PublishedPostID = publishedPostID.String
	s.PublishedURL = publishedURL.String
	s.ErrorMessage = errorMessage.String

	return &s, nil
}
