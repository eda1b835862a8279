package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL           string
	WebSocketURL         string
	RequestTimeout       time.Duration
	AuthTimeout          time.Duration
	CredentialsFile      string
	SessionCheckInterval time.Duration
	RefreshLookahead     time.Duration
	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnects        int
	DefaultPageSize      int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:           getEnv("API_BASE_URL", "http://localhost:8085/api/v1"),
		WebSocketURL:         getEnv("WS_URL", "ws://localhost:8085/ws"),
		RequestTimeout:       getDuration("REQUEST_TIMEOUT", 30*time.Second),
		AuthTimeout:          getDuration("AUTH_TIMEOUT", 10*time.Second),
		CredentialsFile:      getEnv("CREDENTIALS_FILE", defaultCredentialsFile()),
		SessionCheckInterval: getDuration("SESSION_CHECK_INTERVAL", 30*time.Second),
		RefreshLookahead:     getDuration("REFRESH_LOOKAHEAD", time.Minute),
		HeartbeatInterval:    getDuration("WS_HEARTBEAT_INTERVAL", 25*time.Second),
		ReconnectDelay:       getDuration("WS_RECONNECT_DELAY", 3*time.Second),
		MaxReconnects:        getInt("WS_MAX_RECONNECTS", 5),
		DefaultPageSize:      getInt("DEFAULT_PAGE_SIZE", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}
	if _, err := url.Parse(c.APIBaseURL); err != nil {
		return fmt.Errorf("API_BASE_URL is not a valid URL: %w", err)
	}

	if c.WebSocketURL == "" {
		return fmt.Errorf("WS_URL cannot be empty")
	}
	parsed, err := url.Parse(c.WebSocketURL)
	if err != nil {
		return fmt.Errorf("WS_URL is not a valid URL: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("WS_URL must use the ws or wss scheme")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.AuthTimeout <= 0 {
		return fmt.Errorf("AUTH_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.CredentialsFile) == "" {
		return fmt.Errorf("CREDENTIALS_FILE cannot be empty")
	}

	if c.SessionCheckInterval <= 0 {
		return fmt.Errorf("SESSION_CHECK_INTERVAL must be positive")
	}

	if c.MaxReconnects < 0 {
		return fmt.Errorf("WS_MAX_RECONNECTS cannot be negative")
	}

	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be positive")
	}

	return nil
}

func defaultCredentialsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./credentials.json"
	}

	return filepath.Join(home, ".artists", "credentials.json")
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}
