package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"lendingdesk/internal/app"
	"lendingdesk/internal/cli"
	"lendingdesk/internal/config"
	"lendingdesk/internal/library"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cmd := cli.NewRootCommand(open)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// open connects to the library the same way the server does
func open(ctx context.Context) (*library.Service, func() error, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	// keep stdout clean for command output
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	lib, db, err := app.OpenLibrary(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return lib, func() error {
		_ = logger.Sync()
		return db.Close()
	}, nil
}
