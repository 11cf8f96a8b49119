package publisher

import (
	"context"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
)

// Content is the platform-agnostic payload handed to an adapter. Text is the
// body that gets published; Title is only meaningful for platforms that have
// one (youtube).
type Content struct {
	Title     string
	Text      string
	MediaURLs []string
}

// Result describes a successful publish.
type Result struct {
	PlatformPostID string
	URL            string
	PublishedAt    time.Time
}

// Publisher posts content to a single platform on behalf of a connected
// account. Implementations must not retry internally; retries are driven by
// the schedule dispatcher.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, account *models.SocialAccount, content *Content) (*Result, error)
}

// Registry maps platform names to their adapters.
type Registry struct {
	publishers map[string]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[string]Publisher, len(publishers))}
	for _, p := range publishers {
		r.publishers[p.Platform()] = p
	}
	return r
}

func (r *Registry) Get(platform string) (Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}

func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	return names
}

// checkTokenExpiry fails fast before any network call when the stored token
// is already past its expiry.
func checkTokenExpiry(platform string, account *models.SocialAccount, now time.Time) error {
	if !account.TokenExpiresAt.IsZero() && account.TokenExpiresAt.Before(now) {
		return &models.TokenExpiredError{Platform: platform, ExpiredAt: account.TokenExpiresAt}
	}
	return nil
}
