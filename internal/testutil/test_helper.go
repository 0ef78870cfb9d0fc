// Package testutil prepares a migrated postgres database for tests.
package testutil

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/johndosdos/astrochat/sql/schema"
)

func ProjectRoot() string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "../../")
	return root
}

// DbInit connects to TEST_DB_URL and migrates a clean schema. The test is
// skipped when TEST_DB_URL is not set. The schema is reset again once the
// test finishes.
func DbInit(t testing.TB) *pgxpool.Pool {
	t.Helper()

	if err := godotenv.Load(filepath.Join(ProjectRoot(), ".env")); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}

	testURL := os.Getenv("TEST_DB_URL")
	if testURL == "" {
		t.Skip("TEST_DB_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, testURL)
	if err != nil {
		t.Fatalf("could not connect to the postgresql database: %v", err)
	}

	dbForGoose := stdlib.OpenDBFromPool(dbPool)
	if err := DbGooseReset(dbForGoose); err != nil {
		t.Fatalf("goose.Reset() error = %+v", err)
	}
	if err := DbGooseUp(dbForGoose); err != nil {
		t.Fatalf("goose.Up() error = %+v", err)
	}

	t.Cleanup(func() {
		if err := DbGooseReset(dbForGoose); err != nil {
			t.Errorf("goose.Reset() error = %+v", err)
		}
		if err := dbForGoose.Close(); err != nil {
			t.Errorf("db.Close() error = %+v", err)
		}
		dbPool.Close()
	})

	return dbPool
}

func DbGooseUp(dbForGoose *sql.DB) error {
	goose.SetBaseFS(schema.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(dbForGoose, ".")
}

func DbGooseReset(dbForGoose *sql.DB) error {
	goose.SetBaseFS(schema.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Reset(dbForGoose, ".")
}
