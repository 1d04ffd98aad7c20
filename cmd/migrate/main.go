// Command migrate manages the database schema and bootstraps staff accounts.
//
// Usage:
//
//	migrate up                  # Apply all pending migrations
//	migrate down                # Roll back the last migration
//	migrate status              # Show migration status
//	migrate version             # Show current schema version
//	migrate redo                # Roll back and re-apply last migration
//	migrate create-superadmin --email staff@platform.tld --name Staff
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/migrations"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	logger := logging.New(os.Getenv("LOG_LEVEL"), "text")

	var db *sql.DB
	var provider *goose.Provider

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Patissio database migrations",
		Long:         "Applies the embedded goose migrations to DATABASE_URL.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			db, err = openDB(cmd.Context())
			if err != nil {
				return err
			}
			provider, err = migrations.NewProvider(db)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if db != nil {
				_ = db.Close()
			}
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				results, err := provider.Up(cmd.Context())
				for _, r := range results {
					logger.Info("applied", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
				}
				if err != nil {
					return err
				}
				if len(results) == 0 {
					logger.Info("no pending migrations")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				r, err := provider.Down(cmd.Context())
				if err != nil {
					return err
				}
				logger.Info("rolled back", "version", r.Source.Version, "path", r.Source.Path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "redo",
			Short: "Roll back and re-apply the last migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := provider.Down(cmd.Context()); err != nil {
					return err
				}
				r, err := provider.UpByOne(cmd.Context())
				if err != nil {
					return err
				}
				logger.Info("re-applied", "version", r.Source.Version, "path", r.Source.Path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, _ []string) error {
				statuses, err := provider.Status(cmd.Context())
				if err != nil {
					return err
				}
				for _, st := range statuses {
					applied := "pending"
					if !st.AppliedAt.IsZero() {
						applied = st.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-8d %-45s %s\n", st.Source.Version, st.Source.Path, applied)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				v, err := provider.GetDBVersion(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		superadminCommand(func() *sql.DB { return db }),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

// superadminCommand creates a platform staff account. The password is read
// from SUPERADMIN_PASSWORD so it never shows up in shell history.
func superadminCommand(db func() *sql.DB) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create a superadmin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("SUPERADMIN_PASSWORD")
			if password == "" {
				return errors.New("SUPERADMIN_PASSWORD is required")
			}
			if err := migrations.Up(cmd.Context(), db()); err != nil {
				return err
			}
			svc := auth.NewService(auth.NewPostgresStore(db()), tenant.NewPostgresStore(db()), nil)
			user, err := svc.CreateSuperadmin(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created superadmin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "Support", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func openDB(ctx context.Context) (*sql.DB, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}
