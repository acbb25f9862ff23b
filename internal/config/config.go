// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

const defaultDatabasePath = "./data/users.db"

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	Port             int
	DatabasePath     string
	StorageDriver    string
	LogLevel         string
	APIURL           string
	CacheTTL         time.Duration
	FetchTimeout     time.Duration
	NotifySchedule   string
	NotifyDedup      bool
	SendRate         float64
	AllowedUsers     []int64
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken: token,
		DatabasePath:     DatabasePath(),
		StorageDriver:    StorageDriver(),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		APIURL:           envOr("API_URL", "https://api.warframestat.us/pc?language=ru"),
		NotifySchedule:   envOr("NOTIFY_SCHEDULE", "@every 5m"),
	}

	if cfg.StorageDriver != DriverSQLite && cfg.StorageDriver != DriverBolt {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q, use: %s, %s", cfg.StorageDriver, DriverSQLite, DriverBolt)
	}

	var err error
	if cfg.Port, err = intEnv("PORT", 5000); err != nil {
		return nil, err
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = durationEnv("FETCH_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotifyDedup, err = boolEnv("NOTIFY_DEDUP", false); err != nil {
		return nil, err
	}
	if cfg.SendRate, err = floatEnv("SEND_RATE", 20); err != nil {
		return nil, err
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	return cfg, nil
}

// DatabasePath returns DATABASE_PATH or the default database location.
func DatabasePath() string {
	return envOr("DATABASE_PATH", defaultDatabasePath)
}

// StorageDriver returns the lower-cased STORAGE_DRIVER, sqlite when unset.
func StorageDriver() string {
	return strings.ToLower(envOr("STORAGE_DRIVER", DriverSQLite))
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

// durationEnv accepts Go durations ("90s", "2m") or a plain number of seconds.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("%s must be positive, got %q", key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, raw)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
