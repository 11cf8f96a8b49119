package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/service"
)

type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	ps service.PlatformService
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, ps service.PlatformService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		ps: ps,
	}
}

// RefreshTokens renews tokens that expire within the next half hour, so a
// due schedule never finds a dead token.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiringBetween(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			var err error
			switch acc.Platform {
			case models.PlatformTwitter:
				err = c.ps.RefreshTwitterToken(ctx, acc.UserID, acc.RefreshToken)
			case models.PlatformThreads:
				err = c.ps.RefreshThreadsToken(ctx, acc.UserID, acc.AccessToken)
			case models.PlatformYoutube:
				err = c.ps.RefreshYoutubeToken(ctx, acc.UserID, acc.AccessToken, acc.RefreshToken)
			}
			if err != nil {
				slog.Info("Unable to refresh tokens for " + acc.Platform)
			}
		}(acc)
	}

	wg.Wait()
}
