package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
)

type PersonaService interface {
	Create(ctx context.Context, userID int64, name, tone, description string) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.Persona, error)
	Update(ctx context.Context, userID, personaID int64, name, tone, description string) error
	Remove(ctx context.Context, userID, personaID int64) error
}

type personaService struct {
	ps repository.PersonaRepository
}

func NewPersonaService(ps repository.PersonaRepository) PersonaService {
	return &personaService{
		ps: ps,
	}
}

func (s *personaService) Create(ctx context.Context, userID int64, name, tone, description string) (int64, error) {
	if name == "" {
		return 0, models.NewValidationError("persona name cannot be empty")
	}

	persona := &models.Persona{
		UserID:      userID,
		Name:        name,
		Tone:        tone,
		Description: description,
	}
	return s.ps.Create(ctx, persona)
}

func (s *personaService) List(ctx context.Context, userID int64) ([]*models.Persona, error) {
	return s.ps.ListByUserID(ctx, userID)
}

func (s *personaService) Update(ctx context.Context, userID, personaID int64, name, tone, description string) error {
	if name == "" {
		return models.NewValidationError("persona name cannot be empty")
	}

	owns, err := s.ps.CheckByUserID(ctx, personaID, userID)
	if err != nil {
		return err
	}
	if !owns {
		err = errors.New("Persona doesn't exist")
		slog.Info(err.Error())
		return err
	}

	persona := &models.Persona{
		ID:          personaID,
		UserID:      userID,
		Name:        name,
		Tone:        tone,
		Description: description,
	}
	return s.ps.Update(ctx, persona)
}

func (s *personaService) Remove(ctx context.Context, userID, personaID int64) error {
	owns, err := s.ps.CheckByUserID(ctx, personaID, userID)
	if err != nil {
		return err
	}
	if !owns {
		err = errors.New("Persona doesn't exist")
		slog.Info(err.Error())
		return err
	}
	return s.ps.Remove(ctx, personaID)
}
