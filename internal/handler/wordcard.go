package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bunn/bunn/internal/apierr"
	"github.com/bunn/bunn/internal/auth"
	"github.com/bunn/bunn/internal/handler/dto"
	"github.com/bunn/bunn/internal/metrics"
	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/repository"
)

// WordCardStore is the persistence surface for word card endpoints.
type WordCardStore interface {
	CreateWordCard(ctx context.Context, card *model.WordCard) error
	GetWordCard(ctx context.Context, userID, id string) (*model.WordCard, error)
	ListWordCards(ctx context.Context, userID, memoCardID string, limit int) ([]*model.WordCard, error)
	DeleteWordCard(ctx context.Context, userID, id string) error
	ReviewWordCard(ctx context.Context, userID, id string, remembered bool) (*model.WordCard, error)
	GetMemoCard(ctx context.Context, userID, id string) (*model.MemoCard, error)
}

// WordCardHandler serves the word card surface. Word cards always hang off
// a memo card owned by the same user.
type WordCardHandler struct {
	store   WordCardStore
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewWordCardHandler creates a WordCardHandler.
func NewWordCardHandler(store WordCardStore, logger *slog.Logger, rec metrics.Recorder) *WordCardHandler {
	if rec == nil {
		rec = metrics.NewNoop()
	}
	return &WordCardHandler{store: store, logger: logger, metrics: rec}
}

// Create handles POST /api/word-cards.
func (h *WordCardHandler) Create(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}
	if !authCtx.HasScope(model.ScopeCards) {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "key lacks cards scope"))
		return
	}

	var req dto.CreateWordCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.MemoCardID == "" || strings.TrimSpace(req.Word) == "" {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "memo_card_id and word are required"))
		return
	}

	// Parent ownership check; a word card can never attach to another
	// user's memo card.
	if _, err := h.store.GetMemoCard(r.Context(), authCtx.UserID, req.MemoCardID); err != nil {
		if errors.Is(err, repository.ErrMemoCardNotFound) {
			writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "memo card not found"})
			return
		}
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to resolve memo card", err))
		return
	}

	card := &model.WordCard{
		UserID:        authCtx.UserID,
		MemoCardID:    req.MemoCardID,
		Word:          req.Word,
		Meaning:       req.Meaning,
		Pronunciation: req.Pronunciation,
	}

	if err := h.store.CreateWordCard(r.Context(), card); err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to create word card", err))
		return
	}

	h.metrics.IncCardCreated("word")
	h.logger.Info("word_card_created",
		"card_id", card.ID,
		"memo_card_id", card.MemoCardID,
		"user_id", authCtx.UserID,
	)

	writeSuccess(w, http.StatusCreated, dto.ToWordCardResponse(card))
}

// List handles GET /api/word-cards?memo_card_id={id}.
func (h *WordCardHandler) List(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	memoCardID := r.URL.Query().Get("memo_card_id")
	if memoCardID == "" {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "memo_card_id is required"))
		return
	}

	cards, err := h.store.ListWordCards(r.Context(), authCtx.UserID, memoCardID, 200)
	if err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to list word cards", err))
		return
	}

	resp := dto.WordCardListResponse{Data: make([]dto.WordCardResponse, 0, len(cards))}
	for _, card := range cards {
		resp.Data = append(resp.Data, dto.ToWordCardResponse(card))
	}

	writeSuccess(w, http.StatusOK, resp)
}

// Get handles GET /api/word-cards/{id}.
func (h *WordCardHandler) Get(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	card, err := h.store.GetWordCard(r.Context(), authCtx.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, dto.ToWordCardResponse(card))
}

// Delete handles DELETE /api/word-cards/{id}.
func (h *WordCardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	if err := h.store.DeleteWordCard(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Review handles POST /api/word-cards/{id}/review.
func (h *WordCardHandler) Review(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	var req dto.ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Remembered == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "remembered is required"))
		return
	}

	card, err := h.store.ReviewWordCard(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), *req.Remembered)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, dto.ToWordCardResponse(card))
}

func (h *WordCardHandler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrWordCardNotFound) {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "word card not found"})
		return
	}
	writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "word card operation failed", err))
}
