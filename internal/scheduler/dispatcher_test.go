package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/publisher"
)

type fakeScheduleRepo struct {
	mu        sync.Mutex
	nextID    int64
	schedules map[int64]*models.Schedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: make(map[int64]*models.Schedule)}
}

func (r *fakeScheduleRepo) add(s *models.Schedule) *models.Schedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	r.schedules[s.ID] = s
	return s
}

func (r *fakeScheduleRepo) get(id int64) *models.Schedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedules[id]
}

func (r *fakeScheduleRepo) Create(_ context.Context, _ *sql.Tx, s *models.Schedule) (int64, error) {
	return r.add(s).ID, nil
}

func (r *fakeScheduleRepo) GetByID(_ context.Context, id int64) (*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *fakeScheduleRepo) ListByPostID(_ context.Context, postID int64) ([]*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Schedule
	for _, s := range r.schedules {
		if s.PostID == postID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeScheduleRepo) ListByUserID(_ context.Context, userID int64) ([]*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Schedule
	for _, s := range r.schedules {
		if s.UserID == userID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) DueNow(_ context.Context, now time.Time) ([]*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Schedule
	for _, s := range r.schedules {
		if s.Status == models.ScheduleStatusPending && s.NextRetryAt == nil && !s.ScheduledFor.After(now) {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeScheduleRepo) DueForRetry(_ context.Context, now time.Time) ([]*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Schedule
	for _, s := range r.schedules {
		if s.Status == models.ScheduleStatusPending && s.NextRetryAt != nil && !s.NextRetryAt.After(now) {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) Claim(_ context.Context, id int64, now time.Time) (*models.Schedule, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.Status != models.ScheduleStatusPending {
		return nil, false, nil
	}
	s.Status = models.ScheduleStatusProcessing
	claimed := now
	s.ClaimedAt = &claimed
	copied := *s
	return &copied, true, nil
}

func (r *fakeScheduleRepo) ReleaseStale(_ context.Context, now time.Time, lease time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released int64
	cutoff := now.Add(-lease)
	for _, s := range r.schedules {
		if s.Status == models.ScheduleStatusProcessing && s.ClaimedAt != nil && s.ClaimedAt.Before(cutoff) {
			s.Status = models.ScheduleStatusPending
			s.ClaimedAt = nil
			released++
		}
	}
	return released, nil
}

func (r *fakeScheduleRepo) MarkPublished(_ context.Context, id int64, publishedAt time.Time, platformPostID, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.Status != models.ScheduleStatusProcessing {
		return false, nil
	}
	s.Status = models.ScheduleStatusPublished
	s.PublishedAt = &publishedAt
	s.PublishedPostID = platformPostID
	s.PublishedURL = url
	s.NextRetryAt = nil
	s.ErrorMessage = ""
	return true, nil
}

func (r *fakeScheduleRepo) Rearm(_ context.Context, id int64, retryCount int, nextRetryAt time.Time, errMsg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.Status != models.ScheduleStatusProcessing {
		return false, nil
	}
	s.Status = models.ScheduleStatusPending
	s.RetryCount = retryCount
	s.NextRetryAt = &nextRetryAt
	s.ErrorMessage = errMsg
	s.ClaimedAt = nil
	return true, nil
}

func (r *fakeScheduleRepo) MarkFailed(_ context.Context, id int64, retryCount int, errMsg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.Status != models.ScheduleStatusProcessing {
		return false, nil
	}
	s.Status = models.ScheduleStatusFailed
	s.RetryCount = retryCount
	s.NextRetryAt = nil
	s.ErrorMessage = errMsg
	return true, nil
}

func (r *fakeScheduleRepo) Cancel(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.Status == models.ScheduleStatusPublished || s.Status == models.ScheduleStatusCancelled {
		return false, nil
	}
	s.Status = models.ScheduleStatusCancelled
	s.NextRetryAt = nil
	return true, nil
}

func (r *fakeScheduleRepo) CountPendingByPostID(_ context.Context, postID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.schedules {
		if s.PostID == postID && (s.Status == models.ScheduleStatusPending || s.Status == models.ScheduleStatusProcessing) {
			count++
		}
	}
	return count, nil
}

type fakePostRepo struct {
	mu       sync.Mutex
	posts    map[int64]*models.Post
	statuses map[int64]string
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: make(map[int64]*models.Post), statuses: make(map[int64]string)}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) GetByID(_ context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (r *fakePostRepo) Create(_ context.Context, _ *sql.Tx, p *models.Post) (int64, error) {
	return p.ID, nil
}

func (r *fakePostRepo) GetByUserID(_ context.Context, _ int64) ([]*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) UpdateStatus(_ context.Context, status string, postID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[postID] = status
	if p, ok := r.posts[postID]; ok {
		p.Status = status
	}
	return nil
}

func (r *fakePostRepo) CheckByUserID(_ context.Context, postID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	return ok && p.UserID == userID, nil
}

func (r *fakePostRepo) Remove(_ context.Context, _ int64) error { return nil }

type fakeVariantRepo struct {
	variants map[int64]*models.PostVariant
}

func (r *fakeVariantRepo) Create(_ context.Context, _ *sql.Tx, v *models.PostVariant) (int64, error) {
	return v.ID, nil
}

func (r *fakeVariantRepo) GetByID(_ context.Context, id int64) (*models.PostVariant, error) {
	if r.variants == nil {
		return nil, nil
	}
	return r.variants[id], nil
}

func (r *fakeVariantRepo) ListByPostID(_ context.Context, _ int64) ([]*models.PostVariant, error) {
	return nil, nil
}

func (r *fakeVariantRepo) Remove(_ context.Context, _ int64) error { return nil }

type fakeAccountRepo struct {
	accounts map[int64]*models.SocialAccount
}

func (r *fakeAccountRepo) Create(_ context.Context, _ *sql.Tx, _ *models.SocialAccount) (int64, error) {
	return 0, nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id int64) (*models.SocialAccount, error) {
	if r.accounts == nil {
		return nil, nil
	}
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) ListByUserID(_ context.Context, _ int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListInfoByUserID(_ context.Context, _ int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) ListExpiringBetween(_ context.Context, _, _ time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) CheckByUserID(_ context.Context, _, _ int64) (bool, error) {
	return false, nil
}

func (r *fakeAccountRepo) SetToken(_ context.Context, _ int64, _ string, _ *models.SocialAccount) error {
	return nil
}

func (r *fakeAccountRepo) Remove(_ context.Context, _ int64) error { return nil }

type fakePostMediaRepo struct{}

func (r *fakePostMediaRepo) Create(_ context.Context, _ *sql.Tx, _ *models.PostMedia) error {
	return nil
}

func (r *fakePostMediaRepo) ListByPostID(_ context.Context, _ int64) ([]*models.PostMedia, error) {
	return nil, nil
}

func (r *fakePostMediaRepo) Remove(_ context.Context, _ int64) error { return nil }

type fakeMediaAssetRepo struct{}

func (r *fakeMediaAssetRepo) Create(_ context.Context, _ *sql.Tx, _ *models.MediaAsset) (int64, error) {
	return 0, nil
}

func (r *fakeMediaAssetRepo) GetByID(_ context.Context, _ int64) (*models.MediaAsset, error) {
	return nil, nil
}

func (r *fakeMediaAssetRepo) Remove(_ context.Context, _ int64) error { return nil }

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*models.PublishAttempt
}

func (r *fakeAttemptRepo) Create(_ context.Context, pa *models.PublishAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, pa)
	return int64(len(r.attempts)), nil
}

func (r *fakeAttemptRepo) ListByScheduleID(_ context.Context, _ int64) ([]*models.PublishAttempt, error) {
	return nil, nil
}

func (r *fakeAttemptRepo) ListByUserID(_ context.Context, _ int64) ([]*models.PublishAttempt, error) {
	return nil, nil
}

type fakePublisher struct {
	platform  string
	publishFn func(ctx context.Context, account *models.SocialAccount, content *publisher.Content) (*publisher.Result, error)
	calls     int
}

func (p *fakePublisher) Platform() string { return p.platform }

func (p *fakePublisher) Publish(ctx context.Context, account *models.SocialAccount, content *publisher.Content) (*publisher.Result, error) {
	p.calls++
	return p.publishFn(ctx, account, content)
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	schedules  *fakeScheduleRepo
	posts      *fakePostRepo
	attempts   *fakeAttemptRepo
	pub        *fakePublisher
}

func newDispatcherFixture(t *testing.T, pub *fakePublisher) *dispatcherFixture {
	t.Helper()

	schedules := newFakeScheduleRepo()
	posts := newFakePostRepo(&models.Post{ID: 1, UserID: 7, Title: "launch", Content: "we are live", Status: models.PostStatusScheduled})
	attempts := &fakeAttemptRepo{}
	accounts := &fakeAccountRepo{accounts: map[int64]*models.SocialAccount{
		42: {ID: 42, UserID: 7, Platform: models.PlatformTwitter, AccountUsername: "acme"},
	}}

	d := NewDispatcher(schedules, posts, &fakeVariantRepo{}, accounts,
		&fakePostMediaRepo{}, &fakeMediaAssetRepo{}, attempts, publisher.NewRegistry(pub))

	return &dispatcherFixture{dispatcher: d, schedules: schedules, posts: posts, attempts: attempts, pub: pub}
}

func pendingSchedule() *models.Schedule {
	return &models.Schedule{
		UserID:          7,
		PostID:          1,
		Platform:        models.PlatformTwitter,
		SocialAccountID: 42,
		ScheduledFor:    time.Now().Add(-time.Minute),
		Status:          models.ScheduleStatusPending,
		MaxRetries:      3,
	}
}

func TestProcessSchedulePublishes(t *testing.T) {
	pub := &fakePublisher{
		platform: models.PlatformTwitter,
		publishFn: func(_ context.Context, _ *models.SocialAccount, content *publisher.Content) (*publisher.Result, error) {
			require.Equal(t, "we are live", content.Text)
			return &publisher.Result{PlatformPostID: "tw-1", URL: "https://twitter.com/acme/status/tw-1", PublishedAt: time.Now()}, nil
		},
	}
	f := newDispatcherFixture(t, pub)
	s := f.schedules.add(pendingSchedule())

	err := f.dispatcher.ProcessSchedule(context.Background(), s.ID)
	require.NoError(t, err)

	got := f.schedules.get(s.ID)
	require.Equal(t, models.ScheduleStatusPublished, got.Status)
	require.Equal(t, "tw-1", got.PublishedPostID)
	require.NotNil(t, got.PublishedAt)

	require.Len(t, f.attempts.attempts, 1)
	require.Empty(t, f.attempts.attempts[0].ErrorMessage)

	require.Equal(t, models.PostStatusPublished, f.posts.statuses[1])
}

type fakeEnqueuer struct {
	scheduleIDs []int64
	delays      []time.Duration
}

func (e *fakeEnqueuer) EnqueueDispatch(scheduleID int64, delay time.Duration) error {
	e.scheduleIDs = append(e.scheduleIDs, scheduleID)
	e.delays = append(e.delays, delay)
	return nil
}

func TestProcessScheduleFailureRearms(t *testing.T) {
	pub := &fakePublisher{
		platform: models.PlatformTwitter,
		publishFn: func(_ context.Context, _ *models.SocialAccount, _ *publisher.Content) (*publisher.Result, error) {
			return nil, errors.New("rate limited")
		},
	}
	f := newDispatcherFixture(t, pub)
	enqueuer := &fakeEnqueuer{}
	f.dispatcher.SetEnqueuer(enqueuer)
	s := f.schedules.add(pendingSchedule())

	before := time.Now()
	err := f.dispatcher.ProcessSchedule(context.Background(), s.ID)
	require.NoError(t, err)

	got := f.schedules.get(s.ID)
	require.Equal(t, models.ScheduleStatusPending, got.Status)
	require.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.NextRetryAt)
	require.WithinDuration(t, before.Add(5*time.Minute), *got.NextRetryAt, 10*time.Second)
	require.Contains(t, got.ErrorMessage, "rate limited")

	require.Len(t, f.attempts.attempts, 1)
	require.Contains(t, f.attempts.attempts[0].ErrorMessage, "rate limited")

	// The re-arm also queues a precise-time dispatch for the retry.
	require.Equal(t, []int64{s.ID}, enqueuer.scheduleIDs)
	require.Equal(t, []time.Duration{5 * time.Minute}, enqueuer.delays)
}

func TestProcessScheduleExhaustedRetriesFails(t *testing.T) {
	pub := &fakePublisher{
		platform: models.PlatformTwitter,
		publishFn: func(_ context.Context, _ *models.SocialAccount, _ *publisher.Content) (*publisher.Result, error) {
			return nil, errors.New("still down")
		},
	}
	f := newDispatcherFixture(t, pub)
	s := pendingSchedule()
	s.RetryCount = 3
	f.schedules.add(s)

	err := f.dispatcher.ProcessSchedule(context.Background(), s.ID)
	require.NoError(t, err)

	got := f.schedules.get(s.ID)
	require.Equal(t, models.ScheduleStatusFailed, got.Status)
	require.Nil(t, got.NextRetryAt)

	require.Equal(t, models.PostStatusFailed, f.posts.statuses[1])
}

func TestProcessScheduleAdapterPanicIsContained(t *testing.T) {
	pub := &fakePublisher{
		platform: models.PlatformTwitter,
		publishFn: func(_ context.Context, _ *models.SocialAccount, _ *publisher.Content) (*publisher.Result, error) {
			panic("nil map write")
		},
	}
	f := newDispatcherFixture(t, pub)
	s := f.schedules.add(pendingSchedule())

	err := f.dispatcher.ProcessSchedule(context.Background(), s.ID)
	require.NoError(t, err)

	got := f.schedules.get(s.ID)
	require.Equal(t, models.ScheduleStatusPending, got.Status)
	require.Equal(t, 1, got.RetryCount)
	require.Contains(t, got.ErrorMessage, "adapter panic")
}

func TestProcessScheduleNotPendingIsNoop(t *testing.T) {
	pub := &fakePublisher{
		platform: models.PlatformTwitter,
		publishFn: func(_ context.Context, _ *models.SocialAccount, _ *publisher.Content) (*publisher.Result, error) {
			return &publisher.Result{PlatformPostID: "tw-1", PublishedAt: time.Now()}, nil
		},
	}
	f := newDispatcherFixture(t, pub)
	s := pendingSchedule()
	s.Status = models.ScheduleStatusCancelled
	f.schedules.add(s)

	err := f.dispatcher.ProcessSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.Zero(t, pub.calls)
	require.Equal(t, models.ScheduleStatusCancelled, f.schedules.get(s.ID).Status)
}

func TestProcessScheduleCancelledMidFlight(t *testing.T) {
	f := &dispatcherFixture{}
	pub := &fakePublisher{platform: models.PlatformTwitter}
	pub.publishFn = func(_ context.Context, _ *models.SocialAccount, _ *publisher.Content) (*publisher.Result, error) {
		// Cancellation lands while the network call is in flight.
		f.schedules.mu.Lock()
		for _, s := range f.schedules.schedules {
			s.Status = models.ScheduleStatusCancelled
		}
		f.schedules.mu.Unlock()
		return &publisher.Result{PlatformPostID: "tw-1", PublishedAt: time.Now()}, nil
	}
	*f = *newDispatcherFixture(t, pub)
	s := f.schedules.add(pendingSchedule())

	err := f.dispatcher.ProcessSchedule(context.Background(), s.ID)
	require.NoError(t, err)

	got := f.schedules.get(s.ID)
	require.Equal(t, models.ScheduleStatusCancelled, got.Status)
	require.Empty(t, got.PublishedPostID)
	require.Empty(t, f.attempts.attempts)
}

func TestSweepProcessesDueAndRetries(t *testing.T) {
	pub := &fakePublisher{
		platform: models.PlatformTwitter,
		publishFn: func(_ context.Context, _ *models.SocialAccount, _ *publisher.Content) (*publisher.Result, error) {
			return &publisher.Result{PlatformPostID: "tw-ok", PublishedAt: time.Now()}, nil
		},
	}
	f := newDispatcherFixture(t, pub)

	due := f.schedules.add(pendingSchedule())

	future := pendingSchedule()
	future.ScheduledFor = time.Now().Add(time.Hour)
	notDue := f.schedules.add(future)

	retry := pendingSchedule()
	retry.RetryCount = 1
	retryAt := time.Now().Add(-time.Second)
	retry.NextRetryAt = &retryAt
	retryDue := f.schedules.add(retry)

	f.dispatcher.Sweep(context.Background())

	require.Equal(t, models.ScheduleStatusPublished, f.schedules.get(due.ID).Status)
	require.Equal(t, models.ScheduleStatusPublished, f.schedules.get(retryDue.ID).Status)
	require.Equal(t, models.ScheduleStatusPending, f.schedules.get(notDue.ID).Status)
}

func TestSweepReleasesStaleClaims(t *testing.T) {
	pub := &fakePublisher{
		platform: models.PlatformTwitter,
		publishFn: func(_ context.Context, _ *models.SocialAccount, _ *publisher.Content) (*publisher.Result, error) {
			return &publisher.Result{PlatformPostID: "tw-ok", PublishedAt: time.Now()}, nil
		},
	}
	f := newDispatcherFixture(t, pub)

	stale := pendingSchedule()
	stale.Status = models.ScheduleStatusProcessing
	claimedAt := time.Now().Add(-ClaimLease - time.Minute)
	stale.ClaimedAt = &claimedAt
	s := f.schedules.add(stale)

	f.dispatcher.Sweep(context.Background())

	require.Equal(t, models.ScheduleStatusPublished, f.schedules.get(s.ID).Status)
}
