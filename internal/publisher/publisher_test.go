package publisher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/postpilothq/postpilot/internal/models"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(
		&twitterPublisher{},
		&threadsPublisher{},
	)

	p, ok := r.Get(models.PlatformTwitter)
	require.True(t, ok)
	require.Equal(t, models.PlatformTwitter, p.Platform())

	_, ok = r.Get("myspace")
	require.False(t, ok)

	require.ElementsMatch(t, []string{models.PlatformTwitter, models.PlatformThreads}, r.Platforms())
}

func TestCheckTokenExpiry(t *testing.T) {
	now := time.Now()

	// Zero expiry means the platform doesn't expire tokens.
	account := &models.SocialAccount{}
	require.NoError(t, checkTokenExpiry(models.PlatformTwitter, account, now))

	account.TokenExpiresAt = now.Add(time.Minute)
	require.NoError(t, checkTokenExpiry(models.PlatformTwitter, account, now))

	account.TokenExpiresAt = now.Add(-time.Minute)
	err := checkTokenExpiry(models.PlatformTwitter, account, now)
	var tokenErr *models.TokenExpiredError
	require.ErrorAs(t, err, &tokenErr)
}
