package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"obsnote/internal"
	"obsnote/internal/config"
	"obsnote/internal/migration"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using system environment variables")
	}
	internal.ConfigureLogging("info", "text")

	var driver, url string
	cmd := &cobra.Command{
		Use:   "obsnote-migrate",
		Short: "Create or update the paragraph output schema",
		Long: `Apply the schema migrations for persisted paragraph outputs.

Driver and URL default to DATABASE_DRIVER and DATABASE_URL.

Example: obsnote-migrate --driver sqlite3 --url obsnote.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), driver, url)
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "database driver (postgres or sqlite3)")
	cmd.Flags().StringVar(&url, "url", "", "database URL")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrations(ctx context.Context, driver, url string) error {
	if driver == "" || url == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if driver == "" {
			driver = cfg.Database.Driver
		}
		if url == "" {
			url = cfg.Database.URL
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"driver":  driver,
		"version": runner.Version(),
	}).Info("migrations applied")
	return nil
}
