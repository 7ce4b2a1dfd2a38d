package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultChannelKey is the well-known default channel key most radios ship
// with; setting CHANNEL_KEYS replaces it entirely.
const defaultChannelKey = "izOH6cXN6mrJ5e26oRXNcg=="

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	ChannelKeys []string

	PollIntervalMillis int
	MaxRowsPerPoll     int

	IngestAPIKey string

	PolicyBundlePath string
	PolicyBundleID   string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int
	RateLimitFailClosed    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		ChannelKeys:            envKeyList("CHANNEL_KEYS", defaultChannelKey),
		PollIntervalMillis:     envIntDefault("POLL_INTERVAL_MS", 1000),
		MaxRowsPerPoll:         envIntDefault("MAX_ROWS_PER_POLL", 1000),
		IngestAPIKey:           os.Getenv("INGEST_API_KEY"),
		PolicyBundlePath:       os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:         os.Getenv("POLICY_BUNDLE_ID"),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func (c Config) PollInterval() time.Duration {
	if c.PollIntervalMillis <= 0 {
		return time.Second
	}
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func envKeyList(key, def string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		raw = def
	}
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}
