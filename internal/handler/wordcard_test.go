package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/repository"
)

type fakeWordCardStore struct {
	memoCards map[string]*model.MemoCard
	wordCards map[string]*model.WordCard
	nextID    int
}

func newFakeWordCardStore() *fakeWordCardStore {
	return &fakeWordCardStore{
		memoCards: make(map[string]*model.MemoCard),
		wordCards: make(map[string]*model.WordCard),
	}
}

func (f *fakeWordCardStore) addMemoCard(userID string) *model.MemoCard {
	f.nextID++
	card := &model.MemoCard{
		ID:           fmt.Sprintf("mc_%d", f.nextID),
		UserID:       userID,
		OriginalText: "猫が好きです",
		Platform:     model.PlatformWeb,
	}
	f.memoCards[card.ID] = card
	return card
}

func (f *fakeWordCardStore) CreateWordCard(ctx context.Context, card *model.WordCard) error {
	f.nextID++
	card.ID = fmt.Sprintf("wc_%d", f.nextID)
	card.CreatedAt = time.Now()
	card.UpdatedAt = card.CreatedAt
	f.wordCards[card.ID] = card
	return nil
}

func (f *fakeWordCardStore) GetWordCard(ctx context.Context, userID, id string) (*model.WordCard, error) {
	card, ok := f.wordCards[id]
	if !ok || card.UserID != userID || card.IsDeleted() {
		return nil, repository.ErrWordCardNotFound
	}
	return card, nil
}

func (f *fakeWordCardStore) ListWordCards(ctx context.Context, userID, memoCardID string, limit int) ([]*model.WordCard, error) {
	var out []*model.WordCard
	for _, card := range f.wordCards {
		if card.UserID == userID && card.MemoCardID == memoCardID && !card.IsDeleted() {
			out = append(out, card)
		}
	}
	return out, nil
}

func (f *fakeWordCardStore) DeleteWordCard(ctx context.Context, userID, id string) error {
	card, err := f.GetWordCard(ctx, userID, id)
	if err != nil {
		return err
	}
	now := time.Now()
	card.DeletedAt = &now
	return nil
}

func (f *fakeWordCardStore) ReviewWordCard(ctx context.Context, userID, id string, remembered bool) (*model.WordCard, error) {
	card, err := f.GetWordCard(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if remembered {
		card.ReviewCount++
	} else {
		card.ForgetCount++
	}
	return card, nil
}

func (f *fakeWordCardStore) GetMemoCard(ctx context.Context, userID, id string) (*model.MemoCard, error) {
	card, ok := f.memoCards[id]
	if !ok || card.UserID != userID {
		return nil, repository.ErrMemoCardNotFound
	}
	return card, nil
}

func TestWordCardHandler_Create(t *testing.T) {
	t.Parallel()

	store := newFakeWordCardStore()
	memo := store.addMemoCard("user_1")
	h := NewWordCardHandler(store, testLogger(), nil)

	body := fmt.Sprintf(`{"memo_card_id":%q,"word":"猫","meaning":"cat"}`, memo.ID)
	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/word-cards", strings.NewReader(body)), sessionAuth("user_1"))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w.Body)
	data := env["data"].(map[string]any)
	if data["word"] != "猫" {
		t.Errorf("word = %v", data["word"])
	}
	if data["memo_card_id"] != memo.ID {
		t.Errorf("memo_card_id = %v, want %s", data["memo_card_id"], memo.ID)
	}
}

func TestWordCardHandler_CreateValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing memo_card_id", `{"word":"猫"}`},
		{"missing word", `{"memo_card_id":"mc_1"}`},
		{"whitespace word", `{"memo_card_id":"mc_1","word":"  "}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewWordCardHandler(newFakeWordCardStore(), testLogger(), nil)
			req := withAuth(httptest.NewRequest(http.MethodPost, "/api/word-cards",
				strings.NewReader(tt.body)), sessionAuth("user_1"))
			w := httptest.NewRecorder()

			h.Create(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestWordCardHandler_CreateParentOwnership(t *testing.T) {
	t.Parallel()

	store := newFakeWordCardStore()
	memo := store.addMemoCard("owner")
	h := NewWordCardHandler(store, testLogger(), nil)

	body := fmt.Sprintf(`{"memo_card_id":%q,"word":"猫"}`, memo.ID)
	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/word-cards", strings.NewReader(body)), sessionAuth("intruder"))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for another user's memo card", w.Code)
	}
	if len(store.wordCards) != 0 {
		t.Errorf("word card was created despite ownership failure")
	}
}

func TestWordCardHandler_ListRequiresMemoCardID(t *testing.T) {
	t.Parallel()

	h := NewWordCardHandler(newFakeWordCardStore(), testLogger(), nil)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/word-cards", nil), sessionAuth("user_1"))
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWordCardHandler_List(t *testing.T) {
	t.Parallel()

	store := newFakeWordCardStore()
	memo := store.addMemoCard("user_1")
	other := store.addMemoCard("user_1")
	_ = store.CreateWordCard(context.Background(), &model.WordCard{UserID: "user_1", MemoCardID: memo.ID, Word: "猫"})
	_ = store.CreateWordCard(context.Background(), &model.WordCard{UserID: "user_1", MemoCardID: other.ID, Word: "犬"})

	h := NewWordCardHandler(store, testLogger(), nil)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/word-cards?memo_card_id="+memo.ID, nil), sessionAuth("user_1"))
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	env := decodeEnvelope(t, w.Body)
	data := env["data"].(map[string]any)
	items := data["data"].([]any)
	if len(items) != 1 {
		t.Fatalf("list returned %d cards, want 1", len(items))
	}
	if items[0].(map[string]any)["word"] != "猫" {
		t.Errorf("word = %v", items[0].(map[string]any)["word"])
	}
}

func TestWordCardHandler_ReviewNotFound(t *testing.T) {
	t.Parallel()

	h := NewWordCardHandler(newFakeWordCardStore(), testLogger(), nil)

	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/word-cards/wc_404/review",
		strings.NewReader(`{"remembered":true}`)), sessionAuth("user_1"))
	req = withURLParam(req, "id", "wc_404")
	w := httptest.NewRecorder()

	h.Review(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWordCardHandler_DeleteThenList(t *testing.T) {
	t.Parallel()

	store := newFakeWordCardStore()
	memo := store.addMemoCard("user_1")
	card := &model.WordCard{UserID: "user_1", MemoCardID: memo.ID, Word: "猫"}
	_ = store.CreateWordCard(context.Background(), card)

	h := NewWordCardHandler(store, testLogger(), nil)

	req := withAuth(httptest.NewRequest(http.MethodDelete, "/api/word-cards/"+card.ID, nil), sessionAuth("user_1"))
	req = withURLParam(req, "id", card.ID)
	w := httptest.NewRecorder()
	h.Delete(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", w.Code)
	}

	req = withAuth(httptest.NewRequest(http.MethodGet, "/api/word-cards?memo_card_id="+memo.ID, nil), sessionAuth("user_1"))
	w = httptest.NewRecorder()
	h.List(w, req)

	env := decodeEnvelope(t, w.Body)
	data := env["data"].(map[string]any)
	items := data["data"].([]any)
	if len(items) != 0 {
		t.Errorf("deleted card still listed")
	}
}
