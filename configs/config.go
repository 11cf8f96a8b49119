package config

import "os"

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	TwitterClientID     string
	TwitterClientSecret string
	TwitterRedirectURI  string
	ThreadsAppID        string
	ThreadsAppSecret    string
	ThreadsRedirectURI  string
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRedirectURI   string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	LemonSqueezySecret  string
	PostgresURI         string
	RedisURI            string
	FrontendURL         string
	R2                  R2
	SecretKey           string
	CookieName          string
}

func LoadConfig() *Config {
	return &Config{
		TwitterClientID:     getEnv("TWITTER_CLIENT_ID", ""),
		TwitterClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
		TwitterRedirectURI:  getEnv("TWITTER_REDIRECT_URI", ""),
		ThreadsAppID:        getEnv("THREADS_APP_ID", ""),
		ThreadsAppSecret:    getEnv("THREADS_APP_SECRET", ""),
		ThreadsRedirectURI:  getEnv("THREADS_REDIRECT_URI", ""),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:   getEnv("GOOGLE_REDIRECT_URI", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		LemonSqueezySecret:  getEnv("LEMONSQUEEZY_WEBHOOK_SECRET", ""),
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		RedisURI:            getEnv("REDIS_URI", ""),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "postpilot_session"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
