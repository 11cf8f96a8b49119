package publisher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/pkg/utils"
)

type youtubePublisher struct {
	cfg config.Config
}

func NewYoutubePublisher(cfg config.Config) Publisher {
	return &youtubePublisher{cfg: cfg}
}

func (p *youtubePublisher) Platform() string {
	return models.PlatformYoutube
}

func (p *youtubePublisher) Publish(ctx context.Context, account *models.SocialAccount, content *Content) (*Result, error) {
	if err := checkTokenExpiry(models.PlatformYoutube, account, time.Now()); err != nil {
		return nil, err
	}

	if len(content.MediaURLs) == 0 {
		return nil, fmt.Errorf("no video attached for youtube upload")
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(p.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	token := &oauth2.Token{AccessToken: accessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	videoID, err := uploadVideoFromURL(ctx, service, content.Title, content.Text, content.MediaURLs[0])
	if err != nil {
		return nil, err
	}

	return &Result{
		PlatformPostID: videoID,
		URL:            "https://youtu.be/" + videoID,
		PublishedAt:    time.Now().UTC(),
	}, nil
}

func uploadVideoFromURL(ctx context.Context, service *youtube.Service, title, description, videoURL string) (string, error) {
	tempFile, err := downloadVideo(ctx, videoURL)
	if err != nil {
		return "", err
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(file).Do()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return response.Id, nil
}

func downloadVideo(ctx context.Context, videoURL string) (string, error) {
	tempFile, err := os.CreateTemp("", "video-*.mp4")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	_, err = io.Copy(tempFile, response.Body)
	if err != nil {
		return "", fmt.Errorf("error saving video to temporary file: %w", err)
	}

	return tempFile.Name(), nil
}
