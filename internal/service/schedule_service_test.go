package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/transfer"
)

type stubScheduleRepo struct {
	nextID    int64
	schedules map[int64]*models.Schedule
	createErr error
}

func newStubScheduleRepo() *stubScheduleRepo {
	return &stubScheduleRepo{schedules: make(map[int64]*models.Schedule)}
}

func (r *stubScheduleRepo) Create(_ context.Context, _ *sql.Tx, s *models.Schedule) (int64, error) {
	if r.createErr != nil {
		return 0, r.createErr
	}
	r.nextID++
	s.ID = r.nextID
	r.schedules[s.ID] = s
	return s.ID, nil
}

func (r *stubScheduleRepo) GetByID(_ context.Context, id int64) (*models.Schedule, error) {
	return r.schedules[id], nil
}

func (r *stubScheduleRepo) ListByPostID(_ context.Context, postID int64) ([]*models.Schedule, error) {
	var out []*models.Schedule
	for _, s := range r.schedules {
		if s.PostID == postID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubScheduleRepo) ListByUserID(_ context.Context, userID int64) ([]*models.Schedule, error) {
	var out []*models.Schedule
	for _, s := range r.schedules {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubScheduleRepo) DueNow(_ context.Context, _ time.Time) ([]*models.Schedule, error) {
	return nil, nil
}

func (r *stubScheduleRepo) DueForRetry(_ context.Context, _ time.Time) ([]*models.Schedule, error) {
	return nil, nil
}

func (r *stubScheduleRepo) Claim(_ context.Context, _ int64, _ time.Time) (*models.Schedule, bool, error) {
	return nil, false, nil
}

func (r *stubScheduleRepo) ReleaseStale(_ context.Context, _ time.Time, _ time.Duration) (int64, error) {
	return 0, nil
}

func (r *stubScheduleRepo) MarkPublished(_ context.Context, _ int64, _ time.Time, _, _ string) (bool, error) {
	return false, nil
}

func (r *stubScheduleRepo) Rearm(_ context.Context, _ int64, _ int, _ time.Time, _ string) (bool, error) {
	return false, nil
}

func (r *stubScheduleRepo) MarkFailed(_ context.Context, _ int64, _ int, _ string) (bool, error) {
	return false, nil
}

func (r *stubScheduleRepo) Cancel(_ context.Context, id int64) (bool, error) {
	s, ok := r.schedules[id]
	if !ok || s.Status == models.ScheduleStatusPublished || s.Status == models.ScheduleStatusCancelled {
		return false, nil
	}
	s.Status = models.ScheduleStatusCancelled
	return true, nil
}

func (r *stubScheduleRepo) CountPendingByPostID(_ context.Context, postID int64) (int, error) {
	count := 0
	for _, s := range r.schedules {
		if s.PostID == postID && (s.Status == models.ScheduleStatusPending || s.Status == models.ScheduleStatusProcessing) {
			count++
		}
	}
	return count, nil
}

type stubPostRepo struct {
	owned    map[int64]int64 // postID -> userID
	statuses map[int64]string
}

func newStubPostRepo() *stubPostRepo {
	return &stubPostRepo{owned: map[int64]int64{1: 7}, statuses: make(map[int64]string)}
}

func (r *stubPostRepo) GetByID(_ context.Context, id int64) (*models.Post, error) {
	userID, ok := r.owned[id]
	if !ok {
		return nil, nil
	}
	return &models.Post{ID: id, UserID: userID}, nil
}

func (r *stubPostRepo) Create(_ context.Context, _ *sql.Tx, p *models.Post) (int64, error) {
	return p.ID, nil
}

func (r *stubPostRepo) GetByUserID(_ context.Context, _ int64) ([]*models.Post, error) {
	return nil, nil
}

func (r *stubPostRepo) UpdateStatus(_ context.Context, status string, postID int64) error {
	r.statuses[postID] = status
	return nil
}

func (r *stubPostRepo) CheckByUserID(_ context.Context, postID, userID int64) (bool, error) {
	owner, ok := r.owned[postID]
	return ok && owner == userID, nil
}

func (r *stubPostRepo) Remove(_ context.Context, _ int64) error { return nil }

type stubVariantRepo struct {
	variants map[int64]*models.PostVariant
}

func (r *stubVariantRepo) Create(_ context.Context, _ *sql.Tx, v *models.PostVariant) (int64, error) {
	return v.ID, nil
}

func (r *stubVariantRepo) GetByID(_ context.Context, id int64) (*models.PostVariant, error) {
	if r.variants == nil {
		return nil, nil
	}
	return r.variants[id], nil
}

func (r *stubVariantRepo) ListByPostID(_ context.Context, _ int64) ([]*models.PostVariant, error) {
	return nil, nil
}

func (r *stubVariantRepo) Remove(_ context.Context, _ int64) error { return nil }

type stubAccountRepo struct {
	accounts map[int64]*models.SocialAccount
}

func (r *stubAccountRepo) Create(_ context.Context, _ *sql.Tx, _ *models.SocialAccount) (int64, error) {
	return 0, nil
}

func (r *stubAccountRepo) GetByID(_ context.Context, id int64) (*models.SocialAccount, error) {
	if r.accounts == nil {
		return nil, nil
	}
	return r.accounts[id], nil
}

func (r *stubAccountRepo) ListByUserID(_ context.Context, _ int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *stubAccountRepo) ListInfoByUserID(_ context.Context, _ int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *stubAccountRepo) ListExpiringBetween(_ context.Context, _, _ time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *stubAccountRepo) CheckByUserID(_ context.Context, _, _ int64) (bool, error) {
	return false, nil
}

func (r *stubAccountRepo) SetToken(_ context.Context, _ int64, _ string, _ *models.SocialAccount) error {
	return nil
}

func (r *stubAccountRepo) Remove(_ context.Context, _ int64) error { return nil }

type stubAttemptRepo struct {
	attempts []*models.PublishAttempt
}

func (r *stubAttemptRepo) Create(_ context.Context, pa *models.PublishAttempt) (int64, error) {
	r.attempts = append(r.attempts, pa)
	return int64(len(r.attempts)), nil
}

func (r *stubAttemptRepo) ListByScheduleID(_ context.Context, scheduleID int64) ([]*models.PublishAttempt, error) {
	var out []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.ScheduleID == scheduleID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *stubAttemptRepo) ListByUserID(_ context.Context, userID int64) ([]*models.PublishAttempt, error) {
	var out []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type scheduleServiceFixture struct {
	svc       ScheduleService
	schedules *stubScheduleRepo
	posts     *stubPostRepo
	variants  *stubVariantRepo
	attempts  *stubAttemptRepo
}

func newScheduleServiceFixture() *scheduleServiceFixture {
	schedules := newStubScheduleRepo()
	posts := newStubPostRepo()
	variants := &stubVariantRepo{variants: map[int64]*models.PostVariant{
		11: {ID: 11, PostID: 1, Content: "variant copy"},
		12: {ID: 12, PostID: 99, Content: "someone else's"},
	}}
	accounts := &stubAccountRepo{accounts: map[int64]*models.SocialAccount{
		42: {ID: 42, UserID: 7, Platform: models.PlatformTwitter},
		43: {ID: 43, UserID: 7, Platform: models.PlatformThreads},
	}}
	attempts := &stubAttemptRepo{}

	return &scheduleServiceFixture{
		svc:       NewScheduleService(schedules, posts, variants, accounts, attempts),
		schedules: schedules,
		posts:     posts,
		variants:  variants,
		attempts:  attempts,
	}
}

func validCreation() *transfer.ScheduleCreation {
	return &transfer.ScheduleCreation{
		PostID:          1,
		Platform:        models.PlatformTwitter,
		SocialAccountID: 42,
		ScheduledFor:    time.Now().UTC().Add(time.Hour).Format(ScheduledForLayout),
	}
}

func TestCreateSchedule(t *testing.T) {
	f := newScheduleServiceFixture()

	schedule, delay, err := f.svc.Create(context.Background(), 7, validCreation())
	require.NoError(t, err)
	require.NotZero(t, schedule.ID)
	require.Equal(t, models.ScheduleStatusPending, schedule.Status)
	require.Equal(t, models.DefaultMaxRetries, schedule.MaxRetries)
	require.Greater(t, delay, 50*time.Minute)

	require.Equal(t, models.PostStatusScheduled, f.posts.statuses[1])
}

func TestCreateScheduleRejectsPastTime(t *testing.T) {
	f := newScheduleServiceFixture()

	sc := validCreation()
	sc.ScheduledFor = time.Now().UTC().Add(-time.Hour).Format(ScheduledForLayout)

	_, _, err := f.svc.Create(context.Background(), 7, sc)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Error(), "future")
}

func TestCreateScheduleRejectsBadInput(t *testing.T) {
	f := newScheduleServiceFixture()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(sc *transfer.ScheduleCreation)
	}{
		{"unparseable time", func(sc *transfer.ScheduleCreation) { sc.ScheduledFor = "tomorrow at noon" }},
		{"unknown platform", func(sc *transfer.ScheduleCreation) { sc.Platform = "myspace" }},
		{"negative max retries", func(sc *transfer.ScheduleCreation) { sc.MaxRetries = -1 }},
		{"post not owned", func(sc *transfer.ScheduleCreation) { sc.PostID = 99 }},
		{"account not owned", func(sc *transfer.ScheduleCreation) { sc.SocialAccountID = 999 }},
		{"platform mismatch", func(sc *transfer.ScheduleCreation) { sc.SocialAccountID = 43 }},
		{"variant of another post", func(sc *transfer.ScheduleCreation) { sc.VariantID = 12 }},
	}

	for _, tc := range cases {
		sc := validCreation()
		tc.mutate(sc)
		_, _, err := f.svc.Create(ctx, 7, sc)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr, tc.name)
	}
}

func TestCreateScheduleDuplicate(t *testing.T) {
	f := newScheduleServiceFixture()
	f.schedules.createErr = repository.ErrDuplicateSchedule

	_, _, err := f.svc.Create(context.Background(), 7, validCreation())
	require.ErrorIs(t, err, repository.ErrDuplicateSchedule)
}

func TestCreateScheduleWithVariant(t *testing.T) {
	f := newScheduleServiceFixture()

	sc := validCreation()
	sc.VariantID = 11
	sc.MaxRetries = 5

	schedule, _, err := f.svc.Create(context.Background(), 7, sc)
	require.NoError(t, err)
	require.NotNil(t, schedule.VariantID)
	require.Equal(t, int64(11), *schedule.VariantID)
	require.Equal(t, 5, schedule.MaxRetries)
}

func TestCancelSchedule(t *testing.T) {
	f := newScheduleServiceFixture()

	schedule, _, err := f.svc.Create(context.Background(), 7, validCreation())
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), 7, schedule.ID)
	require.NoError(t, err)
	require.Equal(t, models.ScheduleStatusCancelled, f.schedules.schedules[schedule.ID].Status)

	// Last live schedule gone, post goes back to draft.
	require.Equal(t, models.PostStatusDraft, f.posts.statuses[1])
}

func TestCancelScheduleKeepsPublishedPost(t *testing.T) {
	f := newScheduleServiceFixture()
	ctx := context.Background()

	schedule, _, err := f.svc.Create(ctx, 7, validCreation())
	require.NoError(t, err)

	f.schedules.schedules[2] = &models.Schedule{
		ID: 2, UserID: 7, PostID: 1,
		Platform: models.PlatformThreads, SocialAccountID: 43,
		Status: models.ScheduleStatusPublished,
	}
	f.posts.statuses[1] = models.PostStatusPublished

	require.NoError(t, f.svc.Cancel(ctx, 7, schedule.ID))
	require.Equal(t, models.PostStatusPublished, f.posts.statuses[1])
}

func TestCancelTerminalSchedule(t *testing.T) {
	f := newScheduleServiceFixture()
	ctx := context.Background()

	schedule, _, err := f.svc.Create(ctx, 7, validCreation())
	require.NoError(t, err)
	f.schedules.schedules[schedule.ID].Status = models.ScheduleStatusPublished

	err = f.svc.Cancel(ctx, 7, schedule.ID)
	var stateErr *models.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, models.ScheduleStatusPublished, stateErr.Current)
}

func TestScheduleAttempts(t *testing.T) {
	f := newScheduleServiceFixture()
	ctx := context.Background()

	schedule, _, err := f.svc.Create(ctx, 7, validCreation())
	require.NoError(t, err)

	f.attempts.attempts = []*models.PublishAttempt{
		{ID: 1, UserID: 7, ScheduleID: schedule.ID, ErrorMessage: "rate limited"},
		{ID: 2, UserID: 7, ScheduleID: schedule.ID},
		{ID: 3, UserID: 8, ScheduleID: 99},
	}

	attempts, err := f.svc.Attempts(ctx, 7, schedule.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	all, err := f.svc.Attempts(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = f.svc.Attempts(ctx, 8, schedule.ID)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCancelScheduleWrongUser(t *testing.T) {
	f := newScheduleServiceFixture()
	ctx := context.Background()

	schedule, _, err := f.svc.Create(ctx, 7, validCreation())
	require.NoError(t, err)

	err = f.svc.Cancel(ctx, 8, schedule.ID)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}
