package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/publisher"
	"github.com/postpilothq/postpilot/internal/repository"
)

// ClaimLease is how long a schedule may sit in processing before the sweep
// hands it back to pending. Long enough for any single publish call.
const ClaimLease = 10 * time.Minute

// Enqueuer registers a precise-time re-dispatch for a re-armed schedule.
// Optional: without one the cron sweep still picks the retry up once its
// next_retry_at passes.
type Enqueuer interface {
	EnqueueDispatch(scheduleID int64, delay time.Duration) error
}

// Dispatcher drives due schedules through the publish lifecycle: claim,
// publish via the platform adapter, then mark published, re-arm or fail.
type Dispatcher struct {
	sr       repository.ScheduleRepository
	pr       repository.PostRepository
	vr       repository.VariantRepository
	ac       repository.SocialAccountRepository
	pm       repository.PostMediaRepository
	ma       repository.MediaAssetRepository
	pa       repository.PublishAttemptRepository
	registry *publisher.Registry
	enqueuer Enqueuer

	concurrency int
}

// SetEnqueuer wires the precise-time dispatch queue. Set after construction
// because the queue package depends on this one.
func (d *Dispatcher) SetEnqueuer(e Enqueuer) {
	d.enqueuer = e
}

func NewDispatcher(
	sr repository.ScheduleRepository,
	pr repository.PostRepository,
	vr repository.VariantRepository,
	ac repository.SocialAccountRepository,
	pm repository.PostMediaRepository,
	ma repository.MediaAssetRepository,
	pa repository.PublishAttemptRepository,
	registry *publisher.Registry) *Dispatcher {
	return &Dispatcher{
		sr:          sr,
		pr:          pr,
		vr:          vr,
		ac:          ac,
		pm:          pm,
		ma:          ma,
		pa:          pa,
		registry:    registry,
		concurrency: 10,
	}
}

// Sweep releases stale claims and processes everything that is due, original
// times and retry re-arms alike. It is safe to run concurrently with the
// precise per-schedule tasks: claiming is atomic, so a schedule picked up by
// both paths is published exactly once.
func (d *Dispatcher) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	released, err := d.sr.ReleaseStale(ctx, now, ClaimLease)
	if err != nil {
		slog.Info(err.Error())
	} else if released > 0 {
		log.Printf("Released %d stale schedule claims", released)
	}

	due, err := d.sr.DueNow(ctx, now)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	retries, err := d.sr.DueForRetry(ctx, now)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	due = append(due, retries...)

	if len(due) == 0 {
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, d.concurrency)

	for _, s := range due {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(id int64) {
			defer wg.Done()
			defer func() { <-semaphore }()
			if err := d.ProcessSchedule(ctx, id); err != nil {
				log.Printf("Error processing schedule %d: %v", id, err)
			}
		}(s.ID)
	}

	wg.Wait()
}

// ProcessSchedule publishes a single schedule. Calling it with an id that is
// no longer pending is a no-op, which makes duplicate dispatches harmless.
func (d *Dispatcher) ProcessSchedule(ctx context.Context, id int64) error {
	now := time.Now().UTC()

	s, claimed, err := d.sr.Claim(ctx, id, now)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	result, err := d.publish(ctx, s)
	if err != nil {
		return d.handleFailure(ctx, s, err)
	}
	return d.handleSuccess(ctx, s, result)
}

// publish assembles the content and invokes the platform adapter. A panic in
// an adapter is contained here and surfaces as a publish error.
func (d *Dispatcher) publish(ctx context.Context, s *models.Schedule) (result *publisher.Result, err error) {
	adapter, ok := d.registry.Get(s.Platform)
	if !ok {
		return nil, &models.PublishError{Platform: s.Platform, Err: fmt.Errorf("no adapter registered for platform %q", s.Platform)}
	}

	account, err := d.ac.GetByID(ctx, s.SocialAccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, &models.PublishError{Platform: s.Platform, Err: fmt.Errorf("social account %d not found", s.SocialAccountID)}
	}

	content, err := d.buildContent(ctx, s)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &models.PublishError{Platform: s.Platform, Err: fmt.Errorf("adapter panic: %v", r)}
		}
	}()

	result, err = adapter.Publish(ctx, account, content)
	if err != nil {
		var tokenErr *models.TokenExpiredError
		var pubErr *models.PublishError
		if !errors.As(err, &tokenErr) && !errors.As(err, &pubErr) {
			err = &models.PublishError{Platform: s.Platform, Err: err}
		}
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) buildContent(ctx context.Context, s *models.Schedule) (*publisher.Content, error) {
	post, err := d.pr.GetByID(ctx, s.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("post %d not found", s.PostID)
	}

	text := post.Content
	if s.VariantID != nil {
		variant, err := d.vr.GetByID(ctx, *s.VariantID)
		if err != nil {
			return nil, err
		}
		if variant != nil {
			text = variant.Content
		}
	}

	var mediaURLs []string
	postMedias, err := d.pm.ListByPostID(ctx, s.PostID)
	if err != nil {
		return nil, err
	}
	for _, pm := range postMedias {
		asset, err := d.ma.GetByID(ctx, pm.AssetID)
		if err != nil {
			return nil, err
		}
		if asset != nil && asset.FileURL != "" {
			mediaURLs = append(mediaURLs, asset.FileURL)
		}
	}

	return &publisher.Content{
		Title:     post.Title,
		Text:      text,
		MediaURLs: mediaURLs,
	}, nil
}

func (d *Dispatcher) handleSuccess(ctx context.Context, s *models.Schedule, result *publisher.Result) error {
	updated, err := d.sr.MarkPublished(ctx, s.ID, result.PublishedAt, result.PlatformPostID, result.URL)
	if err != nil {
		return err
	}
	if !updated {
		// Cancelled while the publish was in flight. The platform post
		// exists but the schedule record stays cancelled.
		log.Printf("Schedule %d left processing before publish could be recorded", s.ID)
		return nil
	}

	d.recordAttempt(ctx, s, "")
	d.updatePostStatus(ctx, s.PostID)
	return nil
}

func (d *Dispatcher) handleFailure(ctx context.Context, s *models.Schedule, pubErr error) error {
	d.recordAttempt(ctx, s, pubErr.Error())

	decision := Decide(s.RetryCount, s.MaxRetries)
	if decision.Retry {
		nextRetryAt := time.Now().UTC().Add(decision.Delay)
		_, err := d.sr.Rearm(ctx, s.ID, s.RetryCount+1, nextRetryAt, pubErr.Error())
		if err != nil {
			return err
		}
		log.Printf("Schedule %d re-armed for retry %d at %s: %v", s.ID, s.RetryCount+1, nextRetryAt.Format(time.RFC3339), pubErr)

		if d.enqueuer != nil {
			if err := d.enqueuer.EnqueueDispatch(s.ID, decision.Delay); err != nil {
				slog.Info(err.Error())
			}
		}
		return nil
	}

	_, err := d.sr.MarkFailed(ctx, s.ID, s.RetryCount, pubErr.Error())
	if err != nil {
		return err
	}
	log.Printf("Schedule %d failed permanently after %d retries: %v", s.ID, s.RetryCount, pubErr)

	d.updatePostStatus(ctx, s.PostID)
	return nil
}

func (d *Dispatcher) recordAttempt(ctx context.Context, s *models.Schedule, errMsg string) {
	attempt := models.PublishAttempt{
		UserID:       s.UserID,
		ScheduleID:   s.ID,
		PostID:       s.PostID,
		AccountID:    s.SocialAccountID,
		Platform:     s.Platform,
		ErrorMessage: errMsg,
	}
	if _, err := d.pa.Create(ctx, &attempt); err != nil {
		log.Printf("Error saving publish attempt for schedule %d: %v", s.ID, err)
	}
}

// updatePostStatus rolls schedule outcomes up to the post once nothing is
// pending: published if any schedule made it out, failed otherwise.
func (d *Dispatcher) updatePostStatus(ctx context.Context, postID int64) {
	count, err := d.sr.CountPendingByPostID(ctx, postID)
	if err != nil || count > 0 {
		return
	}

	schedules, err := d.sr.ListByPostID(ctx, postID)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	status := models.PostStatusFailed
	for _, s := range schedules {
		if s.Status == models.ScheduleStatusPublished {
			status = models.PostStatusPublished
			break
		}
	}

	if err := d.pr.UpdateStatus(ctx, status, postID); err != nil {
		slog.Info(err.Error())
	}
}
