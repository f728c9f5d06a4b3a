package bootstrap

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	RTCAPIKey    string
	RTCAPISecret string
	RTCURL       string

	ProviderBaseURL        string
	ProviderAPIKey         string
	ProviderAgentProfileID string
	ProviderCallbackToken  string
	ProviderTimeout        time.Duration

	AvgServiceSeconds int
	SweepInterval     time.Duration
	MaxQueueWait      time.Duration
	SessionRetention  time.Duration
}

func LoadConfig() *Config {
	// optional local overrides; real deployments set the environment directly
	_ = godotenv.Load()

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		RTCAPIKey:    getEnv("RTC_API_KEY", ""),
		RTCAPISecret: getEnv("RTC_API_SECRET", ""),
		RTCURL:       getEnv("RTC_URL", ""),

		ProviderBaseURL:        getEnv("PROVIDER_BASE_URL", ""),
		ProviderAPIKey:         getEnv("PROVIDER_API_KEY", ""),
		ProviderAgentProfileID: getEnv("PROVIDER_AGENT_PROFILE_ID", ""),
		ProviderCallbackToken:  getEnv("PROVIDER_CALLBACK_TOKEN", ""),
		ProviderTimeout:        getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),

		AvgServiceSeconds: getEnvInt("AVG_SERVICE_SECONDS", 60),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 2*time.Minute),
		MaxQueueWait:      getEnvDuration("MAX_QUEUE_WAIT", 10*time.Minute),
		SessionRetention:  getEnvDuration("SESSION_RETENTION", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
