package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lendingdesk/internal/config"
	"lendingdesk/internal/httpapi"
	"lendingdesk/internal/library"
	"lendingdesk/internal/notify"
	"lendingdesk/internal/reminder"
	"lendingdesk/internal/storage"
	"lendingdesk/internal/storage/ch"
	"lendingdesk/internal/storage/pg"
	"lendingdesk/internal/storage/sqlite"
	"lendingdesk/internal/storage/stubs"
)

// App represents the application
type App struct {
	config    *config.Config
	logger    *zap.Logger
	db        storage.DocumentStore
	lib       *library.Service
	server    *httpapi.Server
	scheduler *reminder.Scheduler
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	if envErr != nil {
		logger.Info("No .env file found, using system environment variables")
	}
	logger.Info("Starting lending desk", zap.String("store", cfg.StoreBackend), zap.String("env", cfg.AppEnv))

	lib, db, err := OpenLibrary(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:    cfg,
		logger:    logger,
		db:        db,
		lib:       lib,
		server:    httpapi.New(lib, httpapi.Credentials{User: cfg.AdminUser, PasswordHash: cfg.AdminPasswordHash}, logger.Named("http")),
		scheduler: lib.Scheduler(cfg.ReminderInterval, cfg.ReminderLeadDays),
	}
	if cfg.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH not set, API is unauthenticated")
	}
	return a, nil
}

// NewLogger builds the zap logger for cfg
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.AppEnv == "dev" {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// OpenLibrary connects the configured store and sender and assembles the service.
// The returned store must be closed by the caller.
func OpenLibrary(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*library.Service, storage.DocumentStore, error) {
	db, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	sender, err := NewSender(cfg, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	policy, err := library.ParseReturnPolicy(cfg.ReturnPolicy)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	lib := library.Assemble(db, sender, logger, library.Settings{
		LoanDays:   cfg.LoanDays,
		Policy:     policy,
		AuditActor: cfg.AuditActor,
	})
	return lib, db, nil
}

// OpenStore connects and initializes the configured document store
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.DocumentStore, error) {
	var db storage.DocumentStore
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Info("Using mock database")
		db = stubs.NewMockDB()
	case config.BackendClickHouse:
		logger.Info("Connecting to ClickHouse",
			zap.String("host", cfg.ClickHouseHost),
			zap.Int("port", cfg.ClickHousePort),
			zap.String("database", cfg.ClickHouseDatabase),
			zap.String("user", cfg.ClickHouseUser),
			zap.Bool("tls", cfg.ClickHouseUseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(
			cfg.ClickHouseHost,
			cfg.ClickHousePort,
			cfg.ClickHouseDatabase,
			cfg.ClickHouseUser,
			cfg.ClickHousePassword,
			cfg.ClickHouseUseTLS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB
	case config.BackendPostgres:
		logger.Info("Connecting to Postgres")
		postgresDB, err := pg.NewPostgresDB(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		db = postgresDB
	case config.BackendSQLite:
		logger.Info("Opening SQLite database", zap.String("path", cfg.SQLitePath))
		sqliteDB, err := sqlite.NewSQLiteDB(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		db = sqliteDB
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("Database initialized successfully")
	return db, nil
}

// NewSender creates the configured reminder transport; nil means none
func NewSender(cfg *config.Config, logger *zap.Logger) (reminder.Sender, error) {
	switch cfg.ReminderTransport {
	case config.TransportSMTP:
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger.Named("smtp"))
	case config.TransportTelegram:
		return notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID, logger.Named("telegram"))
	case config.TransportLog:
		return notify.NewLogSender(logger.Named("reminders")), nil
	case config.TransportNone:
		logger.Warn("No reminder transport configured, reminders will fail")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown reminder transport %q", cfg.ReminderTransport)
	}
}

// Run starts the HTTP server and the reminder scheduler and blocks until
// SIGINT/SIGTERM or until one of them fails
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Start(":" + a.config.Port)
	})
	g.Go(func() error {
		return a.scheduler.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("Shutting down...")
		return a.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
