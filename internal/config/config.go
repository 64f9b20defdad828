package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver      string
	DBDSN         string
	ServerPort    string
	SessionSecret string

	NotifyBackend string
	PageSize      int

	LogLevel  string
	LogFormat string

	AdminUsername       string
	AdminPassword       string
	ColumnTemplatesFile string
}

const (
	NotifyMemory   = "memory"
	NotifyPostgres = "postgres"
)

// Load reads the environment, picking up a .env file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:            os.Getenv("DB_DRIVER"),
		DBDSN:               os.Getenv("DB_DSN"),
		ServerPort:          os.Getenv("SERVER_PORT"),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		NotifyBackend:       os.Getenv("NOTIFY_BACKEND"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		LogFormat:           os.Getenv("LOG_FORMAT"),
		AdminUsername:       os.Getenv("ADMIN_USERNAME"),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
		ColumnTemplatesFile: os.Getenv("COLUMN_TEMPLATES_FILE"),
		PageSize:            20,
	}

	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "postgres"
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is not set")
	}

	switch cfg.NotifyBackend {
	case "":
		cfg.NotifyBackend = NotifyMemory
	case NotifyMemory:
	case NotifyPostgres:
		if cfg.DBDriver != "postgres" {
			return nil, errors.New("NOTIFY_BACKEND=postgres requires DB_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("NOTIFY_BACKEND must be memory or postgres, got %q", cfg.NotifyBackend)
	}

	if raw := os.Getenv("PAGE_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("PAGE_SIZE must be a positive integer, got %q", raw)
		}
		cfg.PageSize = n
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	return cfg, nil
}
