package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends
const (
	BackendMemory     = "memory"
	BackendClickHouse = "clickhouse"
	BackendPostgres   = "postgres"
	BackendSQLite     = "sqlite"
)

// Reminder transports
const (
	TransportSMTP     = "smtp"
	TransportTelegram = "telegram"
	TransportLog      = "log"
	TransportNone     = "none"
)

// Config holds the application configuration
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	StoreBackend string
	UseMockDB    bool

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	PostgresURL string
	SQLitePath  string

	// Lending
	LoanDays     int
	ReturnPolicy string
	AuditActor   string

	// Reminders
	ReminderTransport string
	ReminderInterval  time.Duration
	ReminderLeadDays  int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	TelegramToken  string
	TelegramChatID int64

	// Admin basic auth; empty hash disables auth
	AdminUser         string
	AdminPasswordHash string
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Port:     getenv("PORT", "8080"),
		AppEnv:   getenv("APP_ENV", "production"),
		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	if err := config.loadStore(); err != nil {
		return nil, err
	}
	if err := config.loadLending(); err != nil {
		return nil, err
	}
	if err := config.loadReminders(); err != nil {
		return nil, err
	}

	config.AdminUser = getenv("ADMIN_USER", "admin")
	config.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")

	return config, nil
}

func (c *Config) loadStore() error {
	// Use Mock DB (default: false) forces the in-memory store
	c.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"
	c.StoreBackend = strings.ToLower(getenv("STORE_BACKEND", BackendMemory))
	if c.UseMockDB {
		c.StoreBackend = BackendMemory
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendClickHouse:
		c.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required when STORE_BACKEND is clickhouse")
		}

		port, err := intEnv("CLICKHOUSE_PORT", 9000) // Default ClickHouse native port
		if err != nil {
			return err
		}
		c.ClickHousePort = port

		c.ClickHouseDatabase = getenv("CLICKHOUSE_DATABASE", "default")
		c.ClickHouseUser = getenv("CLICKHOUSE_USER", "default")
		c.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		c.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	case BackendPostgres:
		c.PostgresURL = os.Getenv("POSTGRES_URL")
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when STORE_BACKEND is postgres")
		}
	case BackendSQLite:
		c.SQLitePath = getenv("SQLITE_PATH", "library.db")
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q (memory, clickhouse, postgres or sqlite)", c.StoreBackend)
	}
	return nil
}

func (c *Config) loadLending() error {
	days, err := intEnv("LOAN_PERIOD_DAYS", 14)
	if err != nil {
		return err
	}
	if days <= 0 {
		return fmt.Errorf("LOAN_PERIOD_DAYS must be positive")
	}
	c.LoanDays = days

	c.ReturnPolicy = strings.ToLower(getenv("RETURN_POLICY", "verify"))
	if c.ReturnPolicy != "verify" && c.ReturnPolicy != "unverified" {
		return fmt.Errorf("invalid RETURN_POLICY %q (verify or unverified)", c.ReturnPolicy)
	}

	c.AuditActor = getenv("AUDIT_ACTOR", "Admin")
	return nil
}

func (c *Config) loadReminders() error {
	// only dev falls back to logging reminders; elsewhere an unset transport
	// must fail delivery instead of reporting it as sent
	transport := TransportNone
	if c.AppEnv == "dev" {
		transport = TransportLog
	}
	c.ReminderTransport = strings.ToLower(getenv("REMINDER_TRANSPORT", transport))

	switch c.ReminderTransport {
	case TransportNone, TransportLog:
	case TransportSMTP:
		c.SMTPHost = os.Getenv("SMTP_HOST")
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when REMINDER_TRANSPORT is smtp")
		}
		c.SMTPFrom = os.Getenv("SMTP_FROM")
		if c.SMTPFrom == "" {
			return fmt.Errorf("SMTP_FROM is required when REMINDER_TRANSPORT is smtp")
		}
		port, err := intEnv("SMTP_PORT", 587)
		if err != nil {
			return err
		}
		c.SMTPPort = port
		c.SMTPUsername = os.Getenv("SMTP_USERNAME")
		c.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	case TransportTelegram:
		c.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
		if c.TelegramToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when REMINDER_TRANSPORT is telegram")
		}
		chatStr := os.Getenv("TELEGRAM_CHAT_ID")
		if chatStr == "" {
			return fmt.Errorf("TELEGRAM_CHAT_ID is required when REMINDER_TRANSPORT is telegram")
		}
		chatID, err := strconv.ParseInt(strings.TrimSpace(chatStr), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID: %s", chatStr)
		}
		c.TelegramChatID = chatID
	default:
		return fmt.Errorf("invalid REMINDER_TRANSPORT %q (smtp, telegram, log or none)", c.ReminderTransport)
	}

	if raw := os.Getenv("REMINDER_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid REMINDER_INTERVAL: %w", err)
		}
		c.ReminderInterval = interval
	}

	lead, err := intEnv("REMINDER_LEAD_DAYS", 1)
	if err != nil {
		return err
	}
	c.ReminderLeadDays = lead
	return nil
}
