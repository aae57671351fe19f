//go:build integration

package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/bunn/bunn/internal/testutil"
)

// ============================================================================
// User and Subscription Repository Integration Tests
// ============================================================================

func TestIntegrationUserRepository_GetOrCreate(t *testing.T) {
	ctx, repo, _ := newCardTestEnv(t)

	id := testutil.UniqueID("user")
	email := id + "@test.local"

	created, err := repo.GetOrCreateUser(ctx, id, email)
	if err != nil {
		t.Fatalf("GetOrCreateUser (create) failed: %v", err)
	}
	if created.ID != id || created.Email != email {
		t.Errorf("created user = %s/%s, want %s/%s", created.ID, created.Email, id, email)
	}

	// Second call returns the existing row instead of erroring.
	again, err := repo.GetOrCreateUser(ctx, id, "different@test.local")
	if err != nil {
		t.Fatalf("GetOrCreateUser (existing) failed: %v", err)
	}
	if again.Email != email {
		t.Errorf("existing user email = %q, want original %q", again.Email, email)
	}
}

func TestIntegrationUserRepository_DuplicateEmail(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	dup := testutil.NewTestUser(t)
	dup.Email = user.Email

	err := repo.CreateUser(ctx, dup)
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("Expected ErrEmailExists, got: %v", err)
	}
}

func TestIntegrationUserRepository_GetByID_NotFound(t *testing.T) {
	ctx, repo, _ := newCardTestEnv(t)

	_, err := repo.GetUserByID(ctx, "nonexistent-id")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
}

func TestIntegrationSubscriptionRepository_Upsert(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	start := time.Now().UTC().Truncate(time.Second)
	end := start.AddDate(0, 1, 0)

	sub, err := repo.UpsertSubscription(ctx, user.ID, "cus_123", start, end)
	if err != nil {
		t.Fatalf("UpsertSubscription (create) failed: %v", err)
	}
	if sub.UserID != user.ID || sub.StripeCustomerID != "cus_123" {
		t.Errorf("subscription = %s/%s", sub.UserID, sub.StripeCustomerID)
	}

	// A renewal extends the same row rather than adding another.
	newEnd := end.AddDate(0, 1, 0)
	renewed, err := repo.UpsertSubscription(ctx, user.ID, "cus_123", start, newEnd)
	if err != nil {
		t.Fatalf("UpsertSubscription (renew) failed: %v", err)
	}
	if renewed.ID != sub.ID {
		t.Errorf("renewal created a new row: %s vs %s", renewed.ID, sub.ID)
	}
	if !renewed.EndTime.Equal(newEnd) {
		t.Errorf("EndTime = %v, want %v", renewed.EndTime, newEnd)
	}

	fetched, err := repo.GetSubscriptionByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetSubscriptionByUserID failed: %v", err)
	}
	if fetched.ID != sub.ID {
		t.Errorf("fetched subscription ID = %s, want %s", fetched.ID, sub.ID)
	}
}

func TestIntegrationSubscriptionRepository_NotFound(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	_, err := repo.GetSubscriptionByUserID(ctx, user.ID)
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got: %v", err)
	}
}
