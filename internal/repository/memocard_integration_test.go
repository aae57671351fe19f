//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/testutil"
)

// ============================================================================
// Memo Card Repository Integration Tests
// ============================================================================

func newCardTestEnv(t *testing.T) (context.Context, *Repository, *model.User) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetAllSchemas(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schemas: %v", err)
	}

	user := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	return ctx, repo, user
}

func TestIntegrationMemoCardRepository_CreateAndGet(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	series, err := repo.GetOrCreateSeries(ctx, "Terrace House", model.PlatformNetflix)
	if err != nil {
		t.Fatalf("GetOrCreateSeries failed: %v", err)
	}

	card := testutil.NewTestMemoCard(t, user.ID)
	card.Platform = model.PlatformNetflix
	card.SeriesID = &series.ID

	if err := repo.CreateMemoCard(ctx, card); err != nil {
		t.Fatalf("CreateMemoCard failed: %v", err)
	}
	if card.ID == "" {
		t.Fatal("CreateMemoCard did not assign an ID")
	}

	retrieved, err := repo.GetMemoCard(ctx, user.ID, card.ID)
	if err != nil {
		t.Fatalf("GetMemoCard failed: %v", err)
	}

	if retrieved.OriginalText != card.OriginalText {
		t.Errorf("OriginalText mismatch: got %q, want %q", retrieved.OriginalText, card.OriginalText)
	}
	if retrieved.SeriesTitle != "Terrace House" {
		t.Errorf("SeriesTitle = %q, want joined series title", retrieved.SeriesTitle)
	}
	if retrieved.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestIntegrationMemoCardRepository_GetOtherUsersCard(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	card := testutil.NewTestMemoCard(t, user.ID)
	if err := repo.CreateMemoCard(ctx, card); err != nil {
		t.Fatalf("CreateMemoCard failed: %v", err)
	}

	_, err := repo.GetMemoCard(ctx, "someone-else", card.ID)
	if !errors.Is(err, ErrMemoCardNotFound) {
		t.Errorf("Expected ErrMemoCardNotFound, got: %v", err)
	}
}

func TestIntegrationMemoCardRepository_ListPagination(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		card := testutil.NewTestMemoCard(t, user.ID)
		if err := repo.CreateMemoCard(ctx, card); err != nil {
			t.Fatalf("CreateMemoCard failed: %v", err)
		}
		ids = append(ids, card.ID)
		time.Sleep(5 * time.Millisecond) // distinct created_at for ordering
	}

	filter := MemoCardFilter{UserID: user.ID}

	page1, cursor, err := repo.ListMemoCards(ctx, filter, "", 2)
	if err != nil {
		t.Fatalf("ListMemoCards (page 1) failed: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("page 1 size = %d, want 2", len(page1))
	}
	if cursor == "" {
		t.Fatal("expected a next cursor on page 1")
	}
	if page1[0].ID != ids[2] || page1[1].ID != ids[1] {
		t.Errorf("page 1 order = [%s %s], want newest first [%s %s]",
			page1[0].ID, page1[1].ID, ids[2], ids[1])
	}

	page2, cursor2, err := repo.ListMemoCards(ctx, filter, cursor, 2)
	if err != nil {
		t.Fatalf("ListMemoCards (page 2) failed: %v", err)
	}
	if len(page2) != 1 || page2[0].ID != ids[0] {
		t.Errorf("page 2 = %d cards, want the single oldest card", len(page2))
	}
	if cursor2 != "" {
		t.Errorf("page 2 cursor = %q, want empty on final page", cursor2)
	}
}

func TestIntegrationMemoCardRepository_ListInvalidCursor(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	_, _, err := repo.ListMemoCards(ctx, MemoCardFilter{UserID: user.ID}, "not-a-cursor", 10)
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Expected ErrInvalidCursor, got: %v", err)
	}
}

func TestIntegrationMemoCardRepository_ListPlatformFilter(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	youtube := testutil.NewTestMemoCard(t, user.ID)
	if err := repo.CreateMemoCard(ctx, youtube); err != nil {
		t.Fatalf("CreateMemoCard failed: %v", err)
	}
	netflix := testutil.NewTestMemoCard(t, user.ID)
	netflix.Platform = model.PlatformNetflix
	if err := repo.CreateMemoCard(ctx, netflix); err != nil {
		t.Fatalf("CreateMemoCard failed: %v", err)
	}

	cards, _, err := repo.ListMemoCards(ctx, MemoCardFilter{UserID: user.ID, Platform: model.PlatformNetflix}, "", 10)
	if err != nil {
		t.Fatalf("ListMemoCards failed: %v", err)
	}
	if len(cards) != 1 || cards[0].ID != netflix.ID {
		t.Errorf("platform filter returned %d cards, want just the netflix card", len(cards))
	}
}

func TestIntegrationMemoCardRepository_Update(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	card := testutil.NewTestMemoCard(t, user.ID)
	card.Pronunciation = "ねこがすきです"
	if err := repo.CreateMemoCard(ctx, card); err != nil {
		t.Fatalf("CreateMemoCard failed: %v", err)
	}

	translation := "I love cats"
	updated, err := repo.UpdateMemoCard(ctx, user.ID, card.ID, MemoCardUpdate{Translation: &translation})
	if err != nil {
		t.Fatalf("UpdateMemoCard failed: %v", err)
	}

	if updated.Translation != translation {
		t.Errorf("Translation = %q, want %q", updated.Translation, translation)
	}
	if updated.Pronunciation != card.Pronunciation {
		t.Errorf("Pronunciation changed to %q; nil fields must stay untouched", updated.Pronunciation)
	}
}

func TestIntegrationMemoCardRepository_DeleteCascadesWordCards(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	memo := testutil.NewTestMemoCard(t, user.ID)
	if err := repo.CreateMemoCard(ctx, memo); err != nil {
		t.Fatalf("CreateMemoCard failed: %v", err)
	}
	word := &model.WordCard{UserID: user.ID, MemoCardID: memo.ID, Word: "猫", Meaning: "cat"}
	if err := repo.CreateWordCard(ctx, word); err != nil {
		t.Fatalf("CreateWordCard failed: %v", err)
	}

	if err := repo.DeleteMemoCard(ctx, user.ID, memo.ID); err != nil {
		t.Fatalf("DeleteMemoCard failed: %v", err)
	}

	if _, err := repo.GetMemoCard(ctx, user.ID, memo.ID); !errors.Is(err, ErrMemoCardNotFound) {
		t.Errorf("Expected ErrMemoCardNotFound after delete, got: %v", err)
	}
	if _, err := repo.GetWordCard(ctx, user.ID, word.ID); !errors.Is(err, ErrWordCardNotFound) {
		t.Errorf("Expected word card soft-deleted with its parent, got: %v", err)
	}

	// Second delete behaves like a missing card.
	if err := repo.DeleteMemoCard(ctx, user.ID, memo.ID); !errors.Is(err, ErrMemoCardNotFound) {
		t.Errorf("Expected ErrMemoCardNotFound on second delete, got: %v", err)
	}
}

func TestIntegrationMemoCardRepository_Review(t *testing.T) {
	ctx, repo, user := newCardTestEnv(t)

	card := testutil.NewTestMemoCard(t, user.ID)
	if err := repo.CreateMemoCard(ctx, card); err != nil {
		t.Fatalf("CreateMemoCard failed: %v", err)
	}

	reviewed, err := repo.ReviewMemoCard(ctx, user.ID, card.ID, true)
	if err != nil {
		t.Fatalf("ReviewMemoCard (remembered) failed: %v", err)
	}
	if reviewed.ReviewCount != 1 || reviewed.ForgetCount != 0 {
		t.Errorf("counts = %d/%d after remembered, want 1/0", reviewed.ReviewCount, reviewed.ForgetCount)
	}

	forgotten, err := repo.ReviewMemoCard(ctx, user.ID, card.ID, false)
	if err != nil {
		t.Fatalf("ReviewMemoCard (forgotten) failed: %v", err)
	}
	if forgotten.ReviewCount != 1 || forgotten.ForgetCount != 1 {
		t.Errorf("counts = %d/%d after forgotten, want 1/1", forgotten.ReviewCount, forgotten.ForgetCount)
	}
}

func TestIntegrationSeriesRepository_Dedupe(t *testing.T) {
	ctx, repo, _ := newCardTestEnv(t)

	first, err := repo.GetOrCreateSeries(ctx, "Shirokuma Cafe", model.PlatformYouTube)
	if err != nil {
		t.Fatalf("GetOrCreateSeries (first) failed: %v", err)
	}
	second, err := repo.GetOrCreateSeries(ctx, "Shirokuma Cafe", model.PlatformYouTube)
	if err != nil {
		t.Fatalf("GetOrCreateSeries (second) failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("same title and platform produced two series: %s vs %s", first.ID, second.ID)
	}

	other, err := repo.GetOrCreateSeries(ctx, "Shirokuma Cafe", model.PlatformNetflix)
	if err != nil {
		t.Fatalf("GetOrCreateSeries (other platform) failed: %v", err)
	}
	if other.ID == first.ID {
		t.Error("different platform should produce a distinct series row")
	}
}
