package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/models"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/transfer"
	"github.com/postpilothq/postpilot/pkg/utils"
)

var twitterEndpoint = oauth2.Endpoint{
	AuthURL:  "https://twitter.com/i/oauth2/authorize",
	TokenURL: "https://api.twitter.com/2/oauth2/token",
}

// PlatformService connects social accounts and keeps their tokens fresh.
type PlatformService interface {
	TwitterAuthURL(state, verifier string) string
	TwitterCallback(ctx context.Context, code, verifier string, userID int64) error
	RefreshTwitterToken(ctx context.Context, userID int64, refreshToken string) error

	ThreadsAuthURL(state string) string
	ThreadsCallback(ctx context.Context, code string, userID int64) error
	RefreshThreadsToken(ctx context.Context, userID int64, accessToken string) error

	YoutubeAuthURL(state string) string
	YoutubeCallback(ctx context.Context, code string, userID int64) error
	RefreshYoutubeToken(ctx context.Context, userID int64, accessToken, refreshToken string) error

	ListAccounts(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	RemoveAccount(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewPlatformService(cfg config.Config, sa repository.SocialAccountRepository) PlatformService {
	return &platformService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *platformService) twitterOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.TwitterClientID,
		ClientSecret: s.cfg.TwitterClientSecret,
		RedirectURL:  s.cfg.TwitterRedirectURI,
		Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
		Endpoint:     twitterEndpoint,
	}
}

func (s *platformService) TwitterAuthURL(state, verifier string) string {
	return s.twitterOAuthConfig().AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (s *platformService) TwitterCallback(ctx context.Context, code, verifier string, userID int64) error {
	if code == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	conf := s.twitterOAuthConfig()
	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	userInfo, err := s.getTwitterUserInfo(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformTwitter,
		AccountID:       userInfo.Data.ID,
		AccountName:     userInfo.Data.Name,
		AccountUsername: userInfo.Data.Username,
		ProfilePicture:  userInfo.Data.ProfileImageURL,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  token.Expiry,
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	return err
}

func (s *platformService) getTwitterUserInfo(ctx context.Context, accessToken string) (*transfer.TwitterUserResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.twitter.com/2/users/me?user.fields=profile_image_url", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from Twitter: %d", resp.StatusCode)
	}

	var userInfo transfer.TwitterUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

func (s *platformService) RefreshTwitterToken(ctx context.Context, userID int64, refreshToken string) error {
	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	conf := s.twitterOAuthConfig()
	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: decryptedRefreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: token.Expiry,
	}
	if token.RefreshToken != "" {
		encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
		socialAccount.RefreshToken = encryptedRefreshToken
	}

	return s.sa.SetToken(ctx, userID, refreshToken, &socialAccount)
}

func (s *platformService) ThreadsAuthURL(state string) string {
	params := url.Values{}
	params.Set("client_id", s.cfg.ThreadsAppID)
	params.Set("redirect_uri", s.cfg.ThreadsRedirectURI)
	params.Set("scope", "threads_basic,threads_content_publish")
	params.Set("response_type", "code")
	params.Set("state", state)
	return "https://threads.net/oauth/authorize?" + params.Encode()
}

func (s *platformService) ThreadsCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	token, err := s.exchangeThreadsCode(ctx, code)
	if err != nil {
		return err
	}

	longLived, expiresAt, err := s.getLongLivedThreadsToken(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	profile, err := s.getThreadsProfile(ctx, longLived)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(longLived), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformThreads,
		AccountID:       profile.ID,
		AccountName:     profile.Name,
		AccountUsername: profile.Username,
		ProfilePicture:  profile.ProfilePictureURL,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedAccessToken,
		TokenExpiresAt:  expiresAt,
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	return err
}

func (s *platformService) exchangeThreadsCode(ctx context.Context, code string) (*transfer.ThreadsTokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.ThreadsAppID)
	data.Set("client_secret", s.cfg.ThreadsAppSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.ThreadsRedirectURI)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, "POST", "https://graph.threads.net/oauth/access_token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to exchange code: %v", err)
	}
	defer resp.Body.Close()

	var token transfer.ThreadsTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %v", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("no access token returned from Threads")
	}
	return &token, nil
}

func (s *platformService) getLongLivedThreadsToken(ctx context.Context, shortLivedToken string) (string, time.Time, error) {
	reqURL := fmt.Sprintf(
		"https://graph.threads.net/access_token?grant_type=th_exchange_token&client_secret=%s&access_token=%s",
		s.cfg.ThreadsAppSecret,
		shortLivedToken,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", time.Time{}, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", time.Time{}, fmt.Errorf("failed to get long-lived token: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", time.Time{}, fmt.Errorf("failed to decode long-lived token response: %v", err)
	}

	return result.AccessToken, time.Now().Add(time.Second * time.Duration(result.ExpiresIn)), nil
}

func (s *platformService) getThreadsProfile(ctx context.Context, accessToken string) (*transfer.ThreadsProfile, error) {
	reqURL := fmt.Sprintf(
		"https://graph.threads.net/v1.0/me?fields=id,username,name,threads_profile_picture_url&access_token=%s",
		accessToken,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var profile transfer.ThreadsProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &profile, nil
}

func (s *platformService) RefreshThreadsToken(ctx context.Context, userID int64, accessToken string) error {
	decryptedAccessToken, err := utils.Decrypt(accessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf(
		"https://graph.threads.net/refresh_access_token?grant_type=th_refresh_token&access_token=%s",
		decryptedAccessToken,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedAccessToken,
		TokenExpiresAt: time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}

	return s.sa.SetToken(ctx, userID, accessToken, &socialAccount)
}

func (s *platformService) youtubeOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
			"https://www.googleapis.com/auth/youtube.upload",
		},
		Endpoint: google.Endpoint,
	}
}

func (s *platformService) YoutubeAuthURL(state string) string {
	return s.youtubeOAuthConfig().AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (s *platformService) YoutubeCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	conf := s.youtubeOAuthConfig()
	if conf.ClientID == "" || conf.ClientSecret == "" || conf.RedirectURL == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return err
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	if token.RefreshToken == "" {
		err = errors.New("refresh token is empty")
		slog.Info(err.Error())
		return err
	}

	client := conf.Client(ctx, token)
	userInfo, err := GetUserInfo(client)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformYoutube,
		AccountID:       userInfo.ID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Email,
		ProfilePicture:  userInfo.Picture,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  token.Expiry,
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	return err
}

func (s *platformService) RefreshYoutubeToken(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	conf := s.youtubeOAuthConfig()

	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: decryptedRefreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: token.Expiry,
	}

	return s.sa.SetToken(ctx, userID, accessToken, &socialAccount)
}

func (s *platformService) ListAccounts(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return s.sa.ListInfoByUserID(ctx, userID)
}

func (s *platformService) RemoveAccount(ctx context.Context, userID, accountID int64) error {
	owns, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !owns {
		err = errors.New("Account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	// Best effort: revoke the Google grant so the token dies with the row.
	account, err := s.sa.GetByID(ctx, accountID)
	if err == nil && account != nil && account.Platform == models.PlatformYoutube {
		accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
		if err == nil {
			if err := RevokeGoogleAccess(accessToken); err != nil {
				slog.Info(err.Error())
			}
		}
	}

	return s.sa.Remove(ctx, accountID)
}
