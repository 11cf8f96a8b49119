package models

import "time"

type Post struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	PersonaID *int64    `db:"persona_id" json:"persona_id,omitempty"`
	Status    string    `db:"status" json:"status"` // draft, scheduled, published, failed
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PostVariant is an alternate rendition of a post's content, either written
// by the user or generated by the AI pipeline.
type PostVariant struct {
	ID           int64     `db:"id" json:"id"`
	PostID       int64     `db:"post_id" json:"post_id"`
	Content      string    `db:"content" json:"content"`
	Source       string    `db:"source" json:"source"` // ai, manual
	QualityScore float64   `db:"quality_score" json:"quality_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type MediaAsset struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	FileName     string    `db:"file_name"`
	FileType     string    `db:"file_type"`
	FileSize     int64     `db:"file_size"`
	FileURL      string    `db:"file_url"`
	ThumbnailURL string    `db:"thumbnail_url"`
	CreatedAt    time.Time `db:"created_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	AssetID      int64     `db:"asset_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

const (
	VariantSourceAI     = "ai"
	VariantSourceManual = "manual"
)
