// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/apimarket/marketplace/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 520520

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// MigrationFiles lists migration files for a direction ("up" or "down") in
// apply order: ascending for up, descending for down.
func MigrationFiles(direction string) ([]string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(root, "migrations", "*."+direction+".sql"))
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}

	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	return files, nil
}

// ApplyMigration executes a single migration file.
func ApplyMigration(ctx context.Context, pool *pgxpool.Pool, path string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ResetSchema drops every table and re-applies all migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, direction := range []string{"down", "up"} {
		files, err := MigrationFiles(direction)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := ApplyMigration(ctx, pool, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestListing creates a free listing with unique name and link.
func NewTestListing(t testing.TB, name string) *model.Listing {
	t.Helper()
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	return &model.Listing{
		ID:          ulid.Make().String(),
		Name:        name,
		Description: "Test API " + name,
		Category:    model.DefaultCategory,
		Link:        "https://docs.example.com/" + slug,
		HTTPS:       true,
		Cors:        model.DefaultCors,
		Endpoint:    "https://api.example.com/" + slug,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewPaidTestListing creates a paid listing owned by sellerID.
func NewPaidTestListing(t testing.TB, name, sellerID string, price float64) *model.Listing {
	t.Helper()
	l := NewTestListing(t, name)
	l.IsPaid = true
	l.Price = price
	l.UserID = sellerID
	return l
}

// UniqueName generates a unique listing name for tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s %d", prefix, time.Now().UnixNano())
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
