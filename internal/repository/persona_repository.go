package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
)

type PersonaRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Persona, error)
	Create(ctx context.Context, persona *models.Persona) (int64, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Persona, error)
	CheckByUserID(ctx context.Context, personaID, userID int64) (bool, error)
	Update(ctx context.Context, persona *models.Persona) error
	Remove(ctx context.Context, id int64) error
}

type personaRepository struct {
	db *sql.DB
}

func NewPersonaRepository(db *sql.DB) PersonaRepository {
	return &personaRepository{db: db}
}

func (r *personaRepository) Create(ctx context.Context, persona *models.Persona) (int64, error) {
	query := `
		INSERT INTO personas (user_id, name, tone, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, persona.UserID, persona.Name, persona.Tone, persona.Description).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *personaRepository) GetByID(ctx context.Context, id int64) (*models.Persona, error) {
	query := `SELECT id, user_id, name, tone, description, created_at, updated_at FROM personas WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var p models.Persona
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Tone, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &p, nil
}

func (r *personaRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Persona, error) {
	query := `SELECT id, user_id, name, tone, description, created_at, updated_at FROM personas WHERE user_id = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var personas []*models.Persona
	for rows.Next() {
		var p models.Persona
		err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Tone, &p.Description, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		personas = append(personas, &p)
	}
	return personas, nil
}

func (r *personaRepository) CheckByUserID(ctx context.Context, personaID, userID int64) (bool, error) {
	query := "SELECT 1 FROM personas WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, personaID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *personaRepository) Update(ctx context.Context, persona *models.Persona) error {
	query := `
		UPDATE personas
		SET name = $1,
			tone = $2,
			description = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, persona.Name, persona.Tone, persona.Description, time.Now(), persona.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *personaRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM personas WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
