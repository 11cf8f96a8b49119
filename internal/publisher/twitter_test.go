package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/pkg/utils"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

func encryptToken(t *testing.T, token string) string {
	t.Helper()
	encrypted, err := utils.Encrypt([]byte(token), []byte(testSecretKey))
	require.NoError(t, err)
	return encrypted
}

func testAccount(t *testing.T, platform, token string) *models.SocialAccount {
	t.Helper()
	return &models.SocialAccount{
		ID:              42,
		UserID:          7,
		Platform:        platform,
		AccountID:       "123",
		AccountUsername: "acme",
		AccessToken:     encryptToken(t, token),
		TokenExpiresAt:  time.Now().Add(time.Hour),
	}
}

func TestTwitterPublish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets", r.URL.Path)
		require.Equal(t, "Bearer tw-token", r.Header.Get("Authorization"))

		var payload struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "hello world", payload.Text)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"190","text":"hello world"}}`)
	}))
	defer server.Close()

	p := &twitterPublisher{
		cfg:     config.Config{SecretKey: testSecretKey},
		client:  server.Client(),
		baseURL: server.URL,
	}

	result, err := p.Publish(context.Background(), testAccount(t, models.PlatformTwitter, "tw-token"), &Content{Text: "hello world"})
	require.NoError(t, err)
	require.Equal(t, "190", result.PlatformPostID)
	require.Equal(t, "https://twitter.com/acme/status/190", result.URL)
	require.False(t, result.PublishedAt.IsZero())
}

func TestTwitterPublishAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"title":"Forbidden","detail":"not allowed to tweet","status":403}`)
	}))
	defer server.Close()

	p := &twitterPublisher{
		cfg:     config.Config{SecretKey: testSecretKey},
		client:  server.Client(),
		baseURL: server.URL,
	}

	_, err := p.Publish(context.Background(), testAccount(t, models.PlatformTwitter, "tw-token"), &Content{Text: "hello"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
	require.Contains(t, err.Error(), "not allowed to tweet")
}

func TestTwitterPublishExpiredTokenFailsFast(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	p := &twitterPublisher{
		cfg:     config.Config{SecretKey: testSecretKey},
		client:  server.Client(),
		baseURL: server.URL,
	}

	account := testAccount(t, models.PlatformTwitter, "tw-token")
	account.TokenExpiresAt = time.Now().Add(-time.Minute)

	_, err := p.Publish(context.Background(), account, &Content{Text: "hello"})
	var tokenErr *models.TokenExpiredError
	require.ErrorAs(t, err, &tokenErr)
	require.Equal(t, models.PlatformTwitter, tokenErr.Platform)
	require.False(t, called)
}
