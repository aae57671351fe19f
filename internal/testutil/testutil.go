// Package testutil provides helpers for environment-gated integration
// tests: schema resets, locks, and test data factories.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bunn/bunn/internal/model"
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

const advisoryLockID int64 = 815815

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

// migrationNames in apply order. Resets walk this list backwards for the
// down scripts so foreign keys never block a drop.
var migrationNames = []string{
	"000001_users",
	"000002_subscriptions",
	"000003_cards",
	"000004_extension_keys",
	"000005_usage_audit",
}

// ResetAllSchemas drops every table in reverse dependency order and
// recreates the full schema. Per-entity resets do not work here: the card
// and key tables reference users, so users can only drop last.
func ResetAllSchemas(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}
	for i := len(migrationNames) - 1; i >= 0; i-- {
		downSQL, err := os.ReadFile(filepath.Join(root, "migrations", migrationNames[i]+".down.sql"))
		if err != nil {
			return fmt.Errorf("read down migration: %w", err)
		}
		if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
			return fmt.Errorf("apply down migration %s: %w", migrationNames[i], err)
		}
	}
	for _, name := range migrationNames {
		upSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".up.sql"))
		if err != nil {
			return fmt.Errorf("read up migration: %w", err)
		}
		if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
			return fmt.Errorf("apply up migration %s: %w", name, err)
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

// NewTestUser creates a user with a unique ID and email.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	now := time.Now().UTC()
	id := fmt.Sprintf("user-%d", now.UnixNano())
	return &model.User{
		ID:        id,
		Email:     id + "@test.local",
		CreatedAt: now,
	}
}

// NewTestMemoCard creates a memo card owned by the given user.
func NewTestMemoCard(t testing.TB, userID string) *model.MemoCard {
	t.Helper()
	return &model.MemoCard{
		UserID:       userID,
		OriginalText: "猫が好きです",
		Translation:  "I like cats",
		Platform:     model.PlatformYouTube,
	}
}

// NewTestExtensionKey creates an extension key record with fake hash
// material, for repository tests that never verify the secret.
func NewTestExtensionKey(t testing.TB, userID string) *model.ExtensionKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.ExtensionKey{
		UserID:    userID,
		Name:      "Test Key",
		KeyHash:   fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix: "abc123",
		Scopes:    []string{model.ScopeCapture, model.ScopeCards},
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
