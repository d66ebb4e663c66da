// Package main implements the location importer CLI. It loads location seed
// data from a CSV file (plain or gzip-compressed) into the location store.
//
// Usage:
//
//	go run ./cmd/importer --file=seed/locations.csv
//	go run ./cmd/importer --file=seed/locations.csv.gz --dsn=postgres://...
//
// The database connection string is read from the --dsn flag, falling back
// to DATABASE_URL from the environment (or .env file via godotenv).
// Re-importing a file is safe: rows whose coordinates already exist are kept
// unchanged.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"skycast/internal/config"
	"skycast/internal/db"
	"skycast/internal/importer"
	"skycast/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		file = flag.String("file", "", "path to the locations CSV file (required, .csv or .csv.gz)")
		dsn  = flag.String("dsn", "", "database connection string (defaults to DATABASE_URL)")
	)
	flag.Parse()

	if *file == "" {
		flag.Usage()
		return fmt.Errorf("--file is required")
	}

	_ = godotenv.Load()

	url := *dsn
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return fmt.Errorf("no database connection string: set --dsn or DATABASE_URL")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, config.DatabaseConfig{
		URL:               types.SecretString(url),
		MaxConns:          4,
		MinConns:          1,
		MaxConnLifetime:   5 * time.Minute,
		HealthCheckPeriod: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	result, err := importer.New(db.NewLocationRepository(pool), logger).ImportFile(ctx, *file)
	if err != nil {
		return fmt.Errorf("importing %s: %w", *file, err)
	}

	fmt.Printf("read %d rows, skipped %d, inserted %d\n", result.Read, result.Skipped, result.Inserted)
	return nil
}
