package models

import "time"

// Schedule is one request to publish one post (or one of its variants) to one
// social account at one time.
type Schedule struct {
	ID              int64      `db:"id" json:"id"`
	UserID          int64      `db:"user_id" json:"user_id"`
	PostID          int64      `db:"post_id" json:"post_id"`
	VariantID       *int64     `db:"variant_id" json:"variant_id,omitempty"`
	Platform        string     `db:"platform" json:"platform"`
	SocialAccountID int64      `db:"social_account_id" json:"social_account_id"`
	ScheduledFor    time.Time  `db:"scheduled_for" json:"scheduled_for"`
	Status          string     `db:"status" json:"status"`
	RetryCount      int        `db:"retry_count" json:"retry_count"`
	MaxRetries      int        `db:"max_retries" json:"max_retries"`
	NextRetryAt     *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`
	ClaimedAt       *time.Time `db:"claimed_at" json:"-"`
	PublishedAt     *time.Time `db:"published_at" json:"published_at,omitempty"`
	PublishedPostID string     `db:"published_post_id" json:"published_post_id,omitempty"`
	PublishedURL    string     `db:"published_url" json:"published_url,omitempty"`
	ErrorMessage    string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	ScheduleStatusPending    = "pending"
	ScheduleStatusProcessing = "processing"
	ScheduleStatusPublished  = "published"
	ScheduleStatusFailed     = "failed"
	ScheduleStatusCancelled  = "cancelled"
)

const (
	PlatformTwitter = "twitter"
	PlatformThreads = "threads"
	PlatformYoutube = "youtube"
)

const DefaultMaxRetries = 3

// IsTerminal reports whether the schedule can never transition again.
func (s *Schedule) IsTerminal() bool {
	return s.Status == ScheduleStatusPublished || s.Status == ScheduleStatusCancelled ||
		(s.Status == ScheduleStatusFailed && s.RetryCount >= s.MaxRetries)
}
