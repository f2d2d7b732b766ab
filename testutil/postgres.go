// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/onnwee/rolemaster-relay/db"
)

// SetupTestDB connects to TEST_PG_DSN, applies migrations and empties the relay
// tables. It skips the test when TEST_PG_DSN is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := db.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	if _, err := database.ExecContext(ctx, `TRUNCATE command_audit, chat_tokens`); err != nil {
		database.Close()
		t.Fatalf("failed to reset tables: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
