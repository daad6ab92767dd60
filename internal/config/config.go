package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	// Discord Bot
	DiscordToken  string
	CommandPrefix string

	// Discord OAuth2
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string

	// Storage
	StorageBackend string
	DatabaseURL    string
	RedisURL       string

	// Web Server
	WebBind      string
	WebUIBaseURL string

	// Session
	JWTSecret string

	// Ledger limits
	MaxMembers      int
	MaxGroups       int
	MaxNameLength   int
	TransferCodeTTL time.Duration
	StorageTimeout  time.Duration
	StatsLogLimit   int

	LogLevel string
}

// Load reads the environment. Only settings every subcommand needs are
// checked here; RequireDiscord covers the bot and web login.
func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		CommandPrefix:       getEnvDefault("COMMAND_PREFIX", "!"),
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI:  getEnvDefault("DISCORD_REDIRECT_URI", "http://localhost:3000/api/auth/callback"),
		StorageBackend:      strings.ToLower(getEnvDefault("STORAGE_BACKEND", BackendPostgres)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		WebBind:             getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		JWTSecret:           getEnvDefault("JWT_SECRET", "dev-only-change-me"),
		LogLevel:            strings.ToLower(getEnvDefault("LOG_LEVEL", "info")),
	}
	cfg.WebUIBaseURL = extractBaseURL(cfg.DiscordRedirectURI)

	var err error
	if cfg.MaxMembers, err = getEnvInt("MAX_MEMBERS", 40); err != nil {
		return nil, err
	}
	if cfg.MaxGroups, err = getEnvInt("MAX_GROUPS", 15); err != nil {
		return nil, err
	}
	if cfg.MaxNameLength, err = getEnvInt("MAX_NAME_LENGTH", 20); err != nil {
		return nil, err
	}
	if cfg.StatsLogLimit, err = getEnvInt("STATS_LOG_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.TransferCodeTTL, err = getEnvDuration("TRANSFER_CODE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StorageTimeout, err = getEnvDuration("STORAGE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	switch cfg.StorageBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, cfg.StorageBackend)
	}
	if cfg.CommandPrefix == "" {
		return nil, fmt.Errorf("COMMAND_PREFIX must not be empty")
	}

	return cfg, nil
}

// RequireDiscord checks the settings the bot and the web login need.
func (c *Config) RequireDiscord() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.DiscordClientID == "" {
		return fmt.Errorf("DISCORD_CLIENT_ID is required")
	}
	if c.DiscordClientSecret == "" {
		return fmt.Errorf("DISCORD_CLIENT_SECRET is required")
	}
	return nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

func extractBaseURL(redirectURI string) string {
	// e.g., "http://localhost:3000/api/auth/callback" -> "http://localhost:3000"
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}
	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
