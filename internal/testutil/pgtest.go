// Package testutil provides shared test infrastructure.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/migrations"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PGTest returns a migrated database and a cleanup function.
//
// Tests should call this at the top:
//
//	db, cleanup := testutil.PGTest(t)
//	defer cleanup()
//
// POSTGRES_URL selects an existing server; otherwise a throwaway postgres
// container is started. The cleanup function truncates all application tables.
func PGTest(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	ctx := context.Background()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		dbURL = startContainer(t)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("pgtest: open database: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: connect to database: %v", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: run migrations: %v", err)
	}

	cleanup := func() {
		truncateAll(ctx, db)
		_ = db.Close()
	}
	return db, cleanup
}

func startContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("patissio_test"),
		tcpostgres.WithUsername("patissio"),
		tcpostgres.WithPassword("patissio"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("pgtest: no POSTGRES_URL and no container runtime: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pgtest: connection string: %v", err)
	}
	return dsn
}

// truncateAll truncates all user-created tables to provide a clean slate
// between tests. The goose version table is kept.
func truncateAll(ctx context.Context, db *sql.DB) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		  AND tablename <> 'goose_db_version'
	`)
	if err != nil {
		return
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}

	if len(tables) > 0 {
		// Table names come from pg_tables, not user input.
		stmt := "TRUNCATE " + strings.Join(tables, ", ") + " CASCADE" // #nosec G202
		_, _ = db.ExecContext(ctx, stmt)
	}
}

// SeedTenant inserts tn and its owner account.
func SeedTenant(t *testing.T, db *sql.DB, tn *tenant.Tenant) {
	t.Helper()
	ctx := context.Background()
	user := &auth.User{
		ID:           tn.UserID,
		Email:        tn.Slug + "@example.com",
		PasswordHash: "x",
		Name:         tn.BusinessName,
		Role:         auth.RolePatissier,
		CreatedAt:    time.Now().UTC(),
	}
	if err := auth.NewPostgresStore(db).Create(ctx, user); err != nil {
		t.Fatalf("pgtest: seed user: %v", err)
	}
	if err := tenant.NewPostgresStore(db).Create(ctx, tn); err != nil {
		t.Fatalf("pgtest: seed tenant: %v", err)
	}
}
