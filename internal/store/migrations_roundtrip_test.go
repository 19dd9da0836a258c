package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("SHELF_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("SHELF_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn, PoolConfig{MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	migrations, err := LoadMigrations(testMigrationsDir)
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}

	applied, err := ApplyMigrations(ctx, db, testMigrationsDir)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(applied) != len(migrations) {
		t.Fatalf("applied %d of %d migrations", len(applied), len(migrations))
	}

	again, err := ApplyMigrations(ctx, db, testMigrationsDir)
	if err != nil || len(again) != 0 {
		t.Fatalf("second apply should be a no-op, got %d migrations, err %v", len(again), err)
	}

	undone, err := RollbackMigrations(ctx, db, testMigrationsDir, 0)
	if err != nil {
		t.Fatalf("roll back migrations: %v", err)
	}
	if len(undone) != len(migrations) || undone[0].Version != migrations[len(migrations)-1].Version {
		t.Fatalf("unexpected rollback order %+v", undone)
	}

	var tables int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'bookmarks'`).Scan(&tables); err != nil {
		t.Fatalf("inspect schema: %v", err)
	}
	if tables != 0 {
		t.Fatal("bookmarks table should be gone after rollback")
	}

	if _, err := ApplyMigrations(ctx, db, testMigrationsDir); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}
}

func TestOpenRejectsMalformedURL(t *testing.T) {
	if _, err := Open(context.Background(), "postgres://%zz", PoolConfig{}); err == nil {
		t.Fatal("expected a parse error")
	}
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}
