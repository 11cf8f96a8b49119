package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/transfer"
)

const (
	openAIModel       = "gpt-4o-mini"
	maxVariantsPerRun = 5
	creditsPerVariant = 1
)

type VariantService interface {
	Generate(ctx context.Context, userID int64, vg *transfer.VariantGeneration) ([]*models.PostVariant, error)
	CreateManual(ctx context.Context, userID, postID int64, content string) (*models.PostVariant, error)
	List(ctx context.Context, userID, postID int64) ([]*models.PostVariant, error)
	Remove(ctx context.Context, userID, variantID int64) error
}

type variantService struct {
	cfg    config.Config
	client *http.Client
	vr     repository.VariantRepository
	pr     repository.PostRepository
	ps     repository.PersonaRepository
	u      repository.UserRepository
}

func NewVariantService(
	cfg config.Config,
	vr repository.VariantRepository,
	pr repository.PostRepository,
	ps repository.PersonaRepository,
	u repository.UserRepository) VariantService {
	return &variantService{
		cfg:    cfg,
		client: http.DefaultClient,
		vr:     vr,
		pr:     pr,
		ps:     ps,
		u:      u,
	}
}

// Generate asks the model for alternate renditions of the post and stores
// them. One credit is consumed per requested variant, up front; the consume
// is atomic so concurrent generations cannot overdraw.
func (s *variantService) Generate(ctx context.Context, userID int64, vg *transfer.VariantGeneration) ([]*models.PostVariant, error) {
	if vg == nil {
		return nil, models.NewValidationError("generation data is nil")
	}

	count := vg.Count
	if count <= 0 {
		count = 1
	}
	if count > maxVariantsPerRun {
		return nil, models.NewValidationError("at most %d variants per run", maxVariantsPerRun)
	}

	owns, err := s.pr.CheckByUserID(ctx, vg.PostID, userID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, models.NewValidationError("post doesn't exist")
	}

	post, err := s.pr.GetByID(ctx, vg.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewValidationError("post doesn't exist")
	}

	var persona *models.Persona
	personaID := vg.PersonaID
	if personaID == 0 && post.PersonaID != nil {
		personaID = *post.PersonaID
	}
	if personaID != 0 {
		owns, err := s.ps.CheckByUserID(ctx, personaID, userID)
		if err != nil {
			return nil, err
		}
		if !owns {
			return nil, models.NewValidationError("persona doesn't exist")
		}
		persona, err = s.ps.GetByID(ctx, personaID)
		if err != nil {
			return nil, err
		}
	}

	if err := s.u.ConsumeCredits(ctx, userID, count*creditsPerVariant); err != nil {
		return nil, err
	}

	contents, err := s.requestCompletions(ctx, post, persona, count)
	if err != nil {
		return nil, err
	}

	variants := make([]*models.PostVariant, 0, len(contents))
	for _, content := range contents {
		variant := &models.PostVariant{
			PostID:       vg.PostID,
			Content:      content,
			Source:       models.VariantSourceAI,
			QualityScore: scoreVariant(content),
		}
		id, err := s.vr.Create(ctx, nil, variant)
		if err != nil {
			return nil, fmt.Errorf("error saving variant: %w", err)
		}
		variant.ID = id
		variants = append(variants, variant)
	}

	return variants, nil
}

func (s *variantService) requestCompletions(ctx context.Context, post *models.Post, persona *models.Persona, count int) ([]string, error) {
	system := "You rewrite social media posts. Reply with the rewritten post only, no preamble."
	if persona != nil {
		system = fmt.Sprintf("You rewrite social media posts in the voice of %s. Tone: %s. %s Reply with the rewritten post only, no preamble.",
			persona.Name, persona.Tone, persona.Description)
	}

	reqBody := transfer.ChatCompletionRequest{
		Model: openAIModel,
		Messages: []transfer.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: post.Content},
		},
		Temperature: 0.9,
		N:           count,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	reqURL := strings.TrimRight(s.cfg.OpenAIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.OpenAIAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	var result transfer.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("error response from completion API: %s", result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from completion API: %d", resp.StatusCode)
	}
	if len(result.Choices) == 0 {
		return nil, errors.New("no completions returned")
	}

	contents := make([]string, 0, len(result.Choices))
	for _, choice := range result.Choices {
		text := strings.TrimSpace(choice.Message.Content)
		if text != "" {
			contents = append(contents, text)
		}
	}
	if len(contents) == 0 {
		return nil, errors.New("completions were empty")
	}
	return contents, nil
}

// scoreVariant is a crude length heuristic so the best candidates sort
// first: full marks up to tweet length, fading to zero by 1000 characters.
func scoreVariant(content string) float64 {
	n := len([]rune(content))
	if n == 0 {
		return 0
	}
	if n <= 280 {
		return 1.0
	}
	if n >= 1000 {
		return 0.1
	}
	return 1.0 - 0.9*float64(n-280)/720.0
}

func (s *variantService) CreateManual(ctx context.Context, userID, postID int64, content string) (*models.PostVariant, error) {
	if content == "" {
		return nil, models.NewValidationError("content cannot be empty")
	}

	owns, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, models.NewValidationError("post doesn't exist")
	}

	variant := &models.PostVariant{
		PostID:       postID,
		Content:      content,
		Source:       models.VariantSourceManual,
		QualityScore: scoreVariant(content),
	}
	id, err := s.vr.Create(ctx, nil, variant)
	if err != nil {
		return nil, err
	}
	variant.ID = id
	return variant, nil
}

func (s *variantService) List(ctx context.Context, userID, postID int64) ([]*models.PostVariant, error) {
	owns, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, models.NewValidationError("post doesn't exist")
	}
	return s.vr.ListByPostID(ctx, postID)
}

func (s *variantService) Remove(ctx context.Context, userID, variantID int64) error {
	variant, err := s.vr.GetByID(ctx, variantID)
	if err != nil {
		return err
	}
	if variant == nil {
		err = errors.New("Variant doesn't exist")
		slog.Info(err.Error())
		return err
	}

	owns, err := s.pr.CheckByUserID(ctx, variant.PostID, userID)
	if err != nil {
		return err
	}
	if !owns {
		err = errors.New("Variant doesn't exist")
		slog.Info(err.Error())
		return err
	}

	return s.vr.Remove(ctx, variantID)
}
