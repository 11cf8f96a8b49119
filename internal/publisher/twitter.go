package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/transfer"
	"github.com/postpilothq/postpilot/pkg/utils"
)

type twitterPublisher struct {
	cfg     config.Config
	client  *http.Client
	baseURL string
}

func NewTwitterPublisher(cfg config.Config) Publisher {
	return &twitterPublisher{
		cfg:     cfg,
		client:  http.DefaultClient,
		baseURL: "https://api.twitter.com",
	}
}

func (p *twitterPublisher) Platform() string {
	return models.PlatformTwitter
}

func (p *twitterPublisher) Publish(ctx context.Context, account *models.SocialAccount, content *Content) (*Result, error) {
	if err := checkTokenExpiry(models.PlatformTwitter, account, time.Now()); err != nil {
		return nil, err
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(p.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	tweet := transfer.TweetRequest{
		Text: content.Text,
	}

	body, err := json.Marshal(tweet)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/2/tweets", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	var result transfer.TweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from Twitter: %d (%s)", resp.StatusCode, result.Detail)
	}

	if result.Data.ID == "" {
		return nil, fmt.Errorf("no tweet ID returned from Twitter")
	}

	return &Result{
		PlatformPostID: result.Data.ID,
		URL:            fmt.Sprintf("https://twitter.com/%s/status/%s", account.AccountUsername, result.Data.ID),
		PublishedAt:    time.Now().UTC(),
	}, nil
}
