package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"encoding/json"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/transfer"
	"github.com/postpilothq/postpilot/pkg/utils"
)

type threadsPublisher struct {
	cfg     config.Config
	client  *http.Client
	baseURL string
}

func NewThreadsPublisher(cfg config.Config) Publisher {
	return &threadsPublisher{
		cfg:     cfg,
		client:  http.DefaultClient,
		baseURL: "https://graph.threads.net/v1.0",
	}
}

func (p *threadsPublisher) Platform() string {
	return models.PlatformThreads
}

// Publish runs the two-step Threads flow: create a media container, then
// publish it.
func (p *threadsPublisher) Publish(ctx context.Context, account *models.SocialAccount, content *Content) (*Result, error) {
	if err := checkTokenExpiry(models.PlatformThreads, account, time.Now()); err != nil {
		return nil, err
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(p.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	containerID, err := p.createContainer(ctx, account.AccountID, accessToken, content)
	if err != nil {
		return nil, err
	}

	postID, err := p.publishContainer(ctx, account.AccountID, containerID, accessToken)
	if err != nil {
		return nil, err
	}

	return &Result{
		PlatformPostID: postID,
		URL:            fmt.Sprintf("https://www.threads.net/@%s/post/%s", account.AccountUsername, postID),
		PublishedAt:    time.Now().UTC(),
	}, nil
}

func (p *threadsPublisher) createContainer(ctx context.Context, accountID, accessToken string, content *Content) (string, error) {
	data := url.Values{}
	data.Set("text", content.Text)
	data.Set("access_token", accessToken)
	if len(content.MediaURLs) > 0 {
		data.Set("media_type", "IMAGE")
		data.Set("image_url", content.MediaURLs[0])
	} else {
		data.Set("media_type", "TEXT")
	}

	reqURL := fmt.Sprintf("%s/%s/threads", p.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	var result transfer.ThreadsContainerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing container response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("error response from Threads: %s", result.Error.Message)
	}

	if result.ID == "" {
		return "", fmt.Errorf("no container ID returned from Threads")
	}

	return result.ID, nil
}

func (p *threadsPublisher) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	data := url.Values{}
	data.Set("creation_id", containerID)
	data.Set("access_token", accessToken)

	reqURL := fmt.Sprintf("%s/%s/threads_publish", p.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	var result transfer.ThreadsPublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing publish response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("error response from Threads: %s", result.Error.Message)
	}

	if result.ID == "" {
		return "", fmt.Errorf("no post ID returned from Threads")
	}

	return result.ID, nil
}
