//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/bunn/bunn/internal/testutil"
)

// ============================================================================
// Extension Key Repository Integration Tests
// ============================================================================

func TestIntegrationExtensionKeyRepository_CreateAndList(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	key := testutil.NewTestExtensionKey(t, user.ID)
	if err := repo.CreateExtensionKey(ctx, key); err != nil {
		t.Fatalf("CreateExtensionKey failed: %v", err)
	}
	if key.ID == "" {
		t.Fatal("CreateExtensionKey did not assign an ID")
	}

	keys, err := repo.ListExtensionKeys(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListExtensionKeys failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("listed %d keys, want 1", len(keys))
	}
	listed := keys[0]
	if listed.ID != key.ID || listed.KeyHash != key.KeyHash {
		t.Errorf("listed key mismatch: got %s/%s", listed.ID, listed.KeyHash)
	}
	if len(listed.Scopes) != 2 {
		t.Errorf("scopes round-trip = %v, want 2 scopes", listed.Scopes)
	}
	if listed.LastUsedAt != nil {
		t.Error("LastUsedAt should start unset")
	}
}

func TestIntegrationExtensionKeyRepository_PrefixLookup(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	// Two keys with the same prefix; lookup returns both candidates.
	first := testutil.NewTestExtensionKey(t, user.ID)
	second := testutil.NewTestExtensionKey(t, user.ID)
	if err := repo.CreateExtensionKey(ctx, first); err != nil {
		t.Fatalf("CreateExtensionKey (first) failed: %v", err)
	}
	if err := repo.CreateExtensionKey(ctx, second); err != nil {
		t.Fatalf("CreateExtensionKey (second) failed: %v", err)
	}

	candidates, err := repo.GetExtensionKeysByPrefix(ctx, first.KeyPrefix)
	if err != nil {
		t.Fatalf("GetExtensionKeysByPrefix failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("prefix lookup returned %d keys, want 2", len(candidates))
	}

	// Revoked keys drop out of the auth lookup path.
	if err := repo.RevokeExtensionKey(ctx, user.ID, first.ID); err != nil {
		t.Fatalf("RevokeExtensionKey failed: %v", err)
	}
	candidates, err = repo.GetExtensionKeysByPrefix(ctx, first.KeyPrefix)
	if err != nil {
		t.Fatalf("GetExtensionKeysByPrefix (after revoke) failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != second.ID {
		t.Errorf("revoked key still returned by prefix lookup")
	}

	// But it stays visible in the owner's list.
	keys, err := repo.ListExtensionKeys(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListExtensionKeys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("listed %d keys, want 2 including the revoked one", len(keys))
	}
}

func TestIntegrationExtensionKeyRepository_Revoke(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	key := testutil.NewTestExtensionKey(t, user.ID)
	if err := repo.CreateExtensionKey(ctx, key); err != nil {
		t.Fatalf("CreateExtensionKey failed: %v", err)
	}

	if err := repo.RevokeExtensionKey(ctx, user.ID, key.ID); err != nil {
		t.Fatalf("RevokeExtensionKey failed: %v", err)
	}

	err := repo.RevokeExtensionKey(ctx, user.ID, key.ID)
	if !errors.Is(err, ErrExtensionKeyNotFound) {
		t.Errorf("Expected ErrExtensionKeyNotFound on double revoke, got: %v", err)
	}

	err = repo.RevokeExtensionKey(ctx, "someone-else", key.ID)
	if !errors.Is(err, ErrExtensionKeyNotFound) {
		t.Errorf("Expected ErrExtensionKeyNotFound for foreign key ID, got: %v", err)
	}
}

func TestIntegrationExtensionKeyRepository_Touch(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	key := testutil.NewTestExtensionKey(t, user.ID)
	if err := repo.CreateExtensionKey(ctx, key); err != nil {
		t.Fatalf("CreateExtensionKey failed: %v", err)
	}

	if err := repo.TouchExtensionKey(ctx, key.ID); err != nil {
		t.Fatalf("TouchExtensionKey failed: %v", err)
	}

	keys, err := repo.ListExtensionKeys(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListExtensionKeys failed: %v", err)
	}
	if len(keys) != 1 || keys[0].LastUsedAt == nil {
		t.Error("LastUsedAt not set after touch")
	}
}
