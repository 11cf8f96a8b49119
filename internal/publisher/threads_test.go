package publisher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/models"
)

func newThreadsTestPublisher(server *httptest.Server) *threadsPublisher {
	return &threadsPublisher{
		cfg:     config.Config{SecretKey: testSecretKey},
		client:  server.Client(),
		baseURL: server.URL,
	}
}

func TestThreadsPublish(t *testing.T) {
	var containerCreated bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "th-token", r.FormValue("access_token"))

		switch r.URL.Path {
		case "/123/threads":
			containerCreated = true
			require.Equal(t, "hello threads", r.FormValue("text"))
			require.Equal(t, "TEXT", r.FormValue("media_type"))
			fmt.Fprint(w, `{"id":"container-1"}`)
		case "/123/threads_publish":
			require.True(t, containerCreated)
			require.Equal(t, "container-1", r.FormValue("creation_id"))
			fmt.Fprint(w, `{"id":"post-9"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := newThreadsTestPublisher(server)
	result, err := p.Publish(context.Background(), testAccount(t, models.PlatformThreads, "th-token"), &Content{Text: "hello threads"})
	require.NoError(t, err)
	require.Equal(t, "post-9", result.PlatformPostID)
	require.Equal(t, "https://www.threads.net/@acme/post/post-9", result.URL)
}

func TestThreadsPublishWithImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		switch r.URL.Path {
		case "/123/threads":
			require.Equal(t, "IMAGE", r.FormValue("media_type"))
			require.Equal(t, "https://cdn.example.com/a.jpg", r.FormValue("image_url"))
			fmt.Fprint(w, `{"id":"container-2"}`)
		case "/123/threads_publish":
			fmt.Fprint(w, `{"id":"post-10"}`)
		}
	}))
	defer server.Close()

	p := newThreadsTestPublisher(server)
	content := &Content{Text: "with image", MediaURLs: []string{"https://cdn.example.com/a.jpg"}}
	result, err := p.Publish(context.Background(), testAccount(t, models.PlatformThreads, "th-token"), content)
	require.NoError(t, err)
	require.Equal(t, "post-10", result.PlatformPostID)
}

func TestThreadsPublishContainerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`)
	}))
	defer server.Close()

	p := newThreadsTestPublisher(server)
	_, err := p.Publish(context.Background(), testAccount(t, models.PlatformThreads, "th-token"), &Content{Text: "hello"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid OAuth access token")
}
