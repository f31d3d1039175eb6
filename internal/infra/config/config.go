package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"

	ChannelTelegram = "telegram"
	ChannelFCM      = "fcm"
	ChannelLog      = "log"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	StoreBackend            string
	DatabaseURL             string
	FirebaseCredentialsPath string
	FirebaseProjectID       string

	TelegramToken   string
	DispatchChannel string
	AdminOwnerID    string // owner allowed to reset every schedule
	HTTPAddr        string // empty disables the HTTP API

	LogLevel    string
	LogFile     string // optional rotating file in addition to stdout
	Environment string

	SchedulerTimeout     time.Duration
	CronSpecReconcile    string
	Location             *time.Location
	NotifyDefaultGranted bool
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load never overrides variables that are already set.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.StoreBackend = strings.ToLower(getenv("STORE_BACKEND", StoreMemory))
	switch cfg.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case StoreFirestore:
		cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
		if cfg.FirebaseProjectID == "" {
			return nil, fmt.Errorf("FIREBASE_PROJECT_ID is not set")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}
	cfg.FirebaseCredentialsPath = os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if cfg.FirebaseProjectID == "" {
		cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.DispatchChannel = strings.ToLower(getenv("DISPATCH_CHANNEL", ChannelLog))
	switch cfg.DispatchChannel {
	case ChannelLog:
	case ChannelTelegram:
		if cfg.TelegramToken == "" {
			return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
		}
	case ChannelFCM:
		if cfg.FirebaseProjectID == "" {
			return nil, fmt.Errorf("FIREBASE_PROJECT_ID is not set")
		}
	default:
		return nil, fmt.Errorf("invalid DISPATCH_CHANNEL %q", cfg.DispatchChannel)
	}
	cfg.AdminOwnerID = os.Getenv("ADMIN_OWNER_ID")
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", "info"))
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT", "development"))

	cfg.SchedulerTimeout, err = time.ParseDuration(getenv("SCHEDULER_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEOUT: %w", err)
	}
	if cfg.SchedulerTimeout <= 0 {
		return nil, fmt.Errorf("SCHEDULER_TIMEOUT must be positive")
	}

	cfg.CronSpecReconcile = getenv("CRON_SPEC_RECONCILE", "*/15 * * * *") // every 15 minutes

	cfg.Location, err = time.LoadLocation(getenv("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.NotifyDefaultGranted, err = strconv.ParseBool(getenv("NOTIFY_DEFAULT_GRANTED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_DEFAULT_GRANTED: %w", err)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
