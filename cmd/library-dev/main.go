package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/ClickHouse/clickhouse-go/v2"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"lendingdesk/internal/app"
	"lendingdesk/migrations"
)

func main() {
	ctx := context.Background()

	log.Println("Starting ClickHouse testcontainer...")

	// Start ClickHouse container
	clickhouseContainer, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:latest",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword("devpassword"),
		clickhouseTC.WithDatabase("default"),
	)
	if err != nil {
		log.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	// Ensure container cleanup on exit
	defer func() {
		log.Println("Stopping ClickHouse container...")
		if err := clickhouseContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	// Get connection details
	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		log.Fatalf("Failed to get container port: %v", err)
	}

	log.Printf("ClickHouse started at %s:%s", host, port.Port())

	if err := migrate(host, port.Port()); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	// Set environment variables for the application
	os.Setenv("STORE_BACKEND", "clickhouse")
	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", port.Port())
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", "devpassword")
	os.Setenv("CLICKHOUSE_USE_TLS", "false")
	os.Setenv("USE_MOCK_DB", "false")

	// Development defaults unless overridden
	for key, value := range map[string]string{
		"PORT":               "8080",
		"APP_ENV":            "dev",
		"LOG_LEVEL":          "debug",
		"REMINDER_TRANSPORT": "log",
		"REMINDER_INTERVAL":  "1m",
	} {
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	if os.Getenv("ADMIN_PASSWORD_HASH") == "" {
		log.Println("⚠️  ADMIN_PASSWORD_HASH not set. The API will accept unauthenticated requests.")
		log.Println("   Generate one with: libctl hash-password")
	}

	log.Println("Starting application with ClickHouse backend...")
	fmt.Println()

	// Create and initialize application
	application, err := app.New()
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Run blocks until SIGINT/SIGTERM
	if err := application.Run(); err != nil {
		log.Printf("Application error: %v", err)
	}
}

func migrate(host, port string) error {
	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{host + ":" + port},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "devpassword",
		},
	})
	defer func(db *sql.DB) { db.Close() }(db)

	return migrations.Up(db, "clickhouse")
}
