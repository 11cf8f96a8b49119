package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/transfer"
)

// ScheduledForLayout is the datetime-local form layout clients submit.
const ScheduledForLayout = "2006-01-02T15:04"

var knownPlatforms = map[string]struct{}{
	models.PlatformTwitter: {},
	models.PlatformThreads: {},
	models.PlatformYoutube: {},
}

type ScheduleService interface {
	Create(ctx context.Context, userID int64, sc *transfer.ScheduleCreation) (*models.Schedule, time.Duration, error)
	List(ctx context.Context, userID int64) ([]*models.Schedule, error)
	ListByPost(ctx context.Context, userID, postID int64) ([]*models.Schedule, error)
	Info(ctx context.Context, userID, scheduleID int64) (*models.Schedule, error)
	Cancel(ctx context.Context, userID, scheduleID int64) error
	Attempts(ctx context.Context, userID, scheduleID int64) ([]*models.PublishAttempt, error)
}

type scheduleService struct {
	sr repository.ScheduleRepository
	pr repository.PostRepository
	vr repository.VariantRepository
	ac repository.SocialAccountRepository
	pa repository.PublishAttemptRepository
}

func NewScheduleService(
	sr repository.ScheduleRepository,
	pr repository.PostRepository,
	vr repository.VariantRepository,
	ac repository.SocialAccountRepository,
	pa repository.PublishAttemptRepository) ScheduleService {
	return &scheduleService{
		sr: sr,
		pr: pr,
		vr: vr,
		ac: ac,
		pa: pa,
	}
}

// Create validates and persists a new schedule. The returned duration is the
// delay until the scheduled time, for the precise-time dispatch task.
func (s *scheduleService) Create(ctx context.Context, userID int64, sc *transfer.ScheduleCreation) (*models.Schedule, time.Duration, error) {
	if sc == nil {
		return nil, 0, models.NewValidationError("schedule data is nil")
	}

	scheduledFor, err := time.Parse(ScheduledForLayout, sc.ScheduledFor)
	if err != nil {
		return nil, 0, models.NewValidationError("invalid scheduled time format: %v", err)
	}

	now := time.Now()
	if !scheduledFor.After(now) {
		return nil, 0, models.NewValidationError("scheduled time must be in the future")
	}

	if _, ok := knownPlatforms[sc.Platform]; !ok {
		return nil, 0, models.NewValidationError("unknown platform %q", sc.Platform)
	}

	if sc.MaxRetries < 0 {
		return nil, 0, models.NewValidationError("max retries cannot be negative")
	}
	maxRetries := sc.MaxRetries
	if maxRetries == 0 {
		maxRetries = models.DefaultMaxRetries
	}

	ownsPost, err := s.pr.CheckByUserID(ctx, sc.PostID, userID)
	if err != nil {
		return nil, 0, err
	}
	if !ownsPost {
		return nil, 0, models.NewValidationError("post doesn't exist")
	}

	account, err := s.ac.GetByID(ctx, sc.SocialAccountID)
	if err != nil {
		return nil, 0, err
	}
	if account == nil || account.UserID != userID {
		return nil, 0, models.NewValidationError("social account doesn't exist")
	}
	if account.Platform != sc.Platform {
		return nil, 0, models.NewValidationError("social account belongs to platform %q, not %q", account.Platform, sc.Platform)
	}

	var variantID *int64
	if sc.VariantID != 0 {
		variant, err := s.vr.GetByID(ctx, sc.VariantID)
		if err != nil {
			return nil, 0, err
		}
		if variant == nil || variant.PostID != sc.PostID {
			return nil, 0, models.NewValidationError("variant doesn't belong to this post")
		}
		variantID = &sc.VariantID
	}

	schedule := &models.Schedule{
		UserID:          userID,
		PostID:          sc.PostID,
		VariantID:       variantID,
		Platform:        sc.Platform,
		SocialAccountID: sc.SocialAccountID,
		ScheduledFor:    scheduledFor,
		Status:          models.ScheduleStatusPending,
		MaxRetries:      maxRetries,
	}

	id, err := s.sr.Create(ctx, nil, schedule)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSchedule) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("error creating schedule: %w", err)
	}
	schedule.ID = id

	if err := s.pr.UpdateStatus(ctx, models.PostStatusScheduled, sc.PostID); err != nil {
		slog.Info(err.Error())
	}

	delay := time.Until(scheduledFor)
	if delay < 0 {
		delay = 0
	}

	return schedule, delay, nil
}

func (s *scheduleService) List(ctx context.Context, userID int64) ([]*models.Schedule, error) {
	return s.sr.ListByUserID(ctx, userID)
}

func (s *scheduleService) ListByPost(ctx context.Context, userID, postID int64) ([]*models.Schedule, error) {
	ownsPost, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !ownsPost {
		return nil, models.NewValidationError("post doesn't exist")
	}
	return s.sr.ListByPostID(ctx, postID)
}

func (s *scheduleService) Info(ctx context.Context, userID, scheduleID int64) (*models.Schedule, error) {
	schedule, err := s.sr.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil || schedule.UserID != userID {
		return nil, models.NewValidationError("schedule doesn't exist")
	}
	return schedule, nil
}

// Cancel moves a non-terminal schedule to cancelled. A publish already in
// flight wins the race: the conditional transitions in the dispatcher and
// here guarantee one of the two outcomes sticks, never both.
func (s *scheduleService) Cancel(ctx context.Context, userID, scheduleID int64) error {
	schedule, err := s.sr.GetByID(ctx, scheduleID)
	if err != nil {
		return err
	}
	if schedule == nil || schedule.UserID != userID {
		return models.NewValidationError("schedule doesn't exist")
	}

	if schedule.IsTerminal() {
		return &models.InvalidStateError{Current: schedule.Status}
	}

	cancelled, err := s.sr.Cancel(ctx, scheduleID)
	if err != nil {
		return err
	}
	if !cancelled {
		// Lost the race to a concurrent publish or cancel.
		current, err := s.sr.GetByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if current != nil {
			return &models.InvalidStateError{Current: current.Status}
		}
		return &models.InvalidStateError{Current: schedule.Status}
	}

	count, err := s.sr.CountPendingByPostID(ctx, schedule.PostID)
	if err != nil {
		slog.Info(err.Error())
		return nil
	}
	if count == 0 {
		if err := s.revertPostStatus(ctx, schedule.PostID); err != nil {
			slog.Info(err.Error())
		}
	}

	return nil
}

// Attempts returns the publish history for one schedule, or for every
// schedule of the user when scheduleID is zero.
func (s *scheduleService) Attempts(ctx context.Context, userID, scheduleID int64) ([]*models.PublishAttempt, error) {
	if scheduleID == 0 {
		return s.pa.ListByUserID(ctx, userID)
	}

	schedule, err := s.sr.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil || schedule.UserID != userID {
		return nil, models.NewValidationError("schedule doesn't exist")
	}
	return s.pa.ListByScheduleID(ctx, scheduleID)
}

// revertPostStatus puts a post back to draft once its last live schedule is
// cancelled, unless an earlier schedule already published it.
func (s *scheduleService) revertPostStatus(ctx context.Context, postID int64) error {
	schedules, err := s.sr.ListByPostID(ctx, postID)
	if err != nil {
		return err
	}
	for _, sch := range schedules {
		if sch.Status == models.ScheduleStatusPublished {
			return nil
		}
	}
	return s.pr.UpdateStatus(ctx, models.PostStatusDraft, postID)
}
