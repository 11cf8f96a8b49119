package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postpilothq/postpilot/internal/models"
)

type VariantRepository interface {
	Create(ctx context.Context, tx *sql.Tx, v *models.PostVariant) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PostVariant, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostVariant, error)
	Remove(ctx context.Context, id int64) error
}

type variantRepository struct {
	db *sql.DB
}

func NewVariantRepository(db *sql.DB) VariantRepository {
	return &variantRepository{db: db}
}

func (r *variantRepository) Create(ctx context.Context, tx *sql.Tx, v *models.PostVariant) (int64, error) {
	query := `
		INSERT INTO post_variants (post_id, content, source, quality_score)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, v.PostID, v.Content, v.Source, v.QualityScore).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, v.PostID, v.Content, v.Source, v.QualityScore).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *variantRepository) GetByID(ctx context.Context, id int64) (*models.PostVariant, error) {
	query := `SELECT id, post_id, content, source, quality_score, created_at FROM post_variants WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var v models.PostVariant
	err := row.Scan(&v.ID, &v.PostID, &v.Content, &v.Source, &v.QualityScore, &v.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &v, nil
}

func (r *variantRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostVariant, error) {
	query := `SELECT id, post_id, content, source, quality_score, created_at FROM post_variants WHERE post_id = $1 ORDER BY quality_score DESC, id`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var variants []*models.PostVariant
	for rows.Next() {
		var v models.PostVariant
		err := rows.Scan(&v.ID, &v.PostID, &v.Content, &v.Source, &v.QualityScore, &v.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		variants = append(variants, &v)
	}
	return variants, nil
}

func (r *variantRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM post_variants WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
