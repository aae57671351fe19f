package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bunn/bunn/internal/apierr"
	"github.com/bunn/bunn/internal/auth"
	"github.com/bunn/bunn/internal/handler/dto"
	"github.com/bunn/bunn/internal/metrics"
	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/repository"
)

// MemoCardStore is the persistence surface for memo card endpoints.
type MemoCardStore interface {
	CreateMemoCard(ctx context.Context, card *model.MemoCard) error
	GetMemoCard(ctx context.Context, userID, id string) (*model.MemoCard, error)
	ListMemoCards(ctx context.Context, filter repository.MemoCardFilter, cursor string, limit int) ([]*model.MemoCard, string, error)
	UpdateMemoCard(ctx context.Context, userID, id string, update repository.MemoCardUpdate) (*model.MemoCard, error)
	DeleteMemoCard(ctx context.Context, userID, id string) error
	ReviewMemoCard(ctx context.Context, userID, id string, remembered bool) (*model.MemoCard, error)
	GetOrCreateSeries(ctx context.Context, title string, platform model.Platform) (*model.Series, error)
}

// MemoCardHandler serves the memo card CRUD surface.
type MemoCardHandler struct {
	store   MemoCardStore
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewMemoCardHandler creates a MemoCardHandler.
func NewMemoCardHandler(store MemoCardStore, logger *slog.Logger, rec metrics.Recorder) *MemoCardHandler {
	if rec == nil {
		rec = metrics.NewNoop()
	}
	return &MemoCardHandler{store: store, logger: logger, metrics: rec}
}

// Create handles POST /api/memo-cards.
func (h *MemoCardHandler) Create(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}
	if !authCtx.HasScope(model.ScopeCards) {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "key lacks cards scope"))
		return
	}

	var req dto.CreateMemoCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.OriginalText) == "" {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "original_text is required"))
		return
	}

	platform := model.Platform(req.Platform)
	if req.Platform == "" {
		platform = model.PlatformWeb
	}
	if !model.IsValidPlatform(platform) {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "invalid platform"))
		return
	}

	card := &model.MemoCard{
		UserID:        authCtx.UserID,
		OriginalText:  req.OriginalText,
		Translation:   req.Translation,
		Pronunciation: req.Pronunciation,
		ContextURL:    req.ContextURL,
		Platform:      platform,
	}

	if req.SeriesTitle != "" {
		series, err := h.store.GetOrCreateSeries(r.Context(), req.SeriesTitle, platform)
		if err != nil {
			writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to resolve series", err))
			return
		}
		card.SeriesID = &series.ID
		card.SeriesTitle = series.Title
	}

	if err := h.store.CreateMemoCard(r.Context(), card); err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to create memo card", err))
		return
	}

	h.metrics.IncCardCreated("memo")
	h.logger.Info("memo_card_created",
		"card_id", card.ID,
		"user_id", authCtx.UserID,
		"platform", platform,
		"has_series", card.SeriesID != nil,
	)

	writeSuccess(w, http.StatusCreated, dto.ToMemoCardResponse(card))
}

// Get handles GET /api/memo-cards/{id}.
func (h *MemoCardHandler) Get(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	card, err := h.store.GetMemoCard(r.Context(), authCtx.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, dto.ToMemoCardResponse(card))
}

// List handles GET /api/memo-cards.
func (h *MemoCardHandler) List(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	query := r.URL.Query()
	limit := 20
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	filter := repository.MemoCardFilter{
		UserID:   authCtx.UserID,
		SeriesID: query.Get("series_id"),
		Platform: model.Platform(query.Get("platform")),
	}

	cards, nextCursor, err := h.store.ListMemoCards(r.Context(), filter, query.Get("cursor"), limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "invalid cursor"))
			return
		}
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to list memo cards", err))
		return
	}

	resp := dto.MemoCardListResponse{
		Data: make([]dto.MemoCardResponse, 0, len(cards)),
		Pagination: dto.Pagination{
			NextCursor: nextCursor,
			HasMore:    nextCursor != "",
		},
	}
	for _, card := range cards {
		resp.Data = append(resp.Data, dto.ToMemoCardResponse(card))
	}

	writeSuccess(w, http.StatusOK, resp)
}

// Update handles PATCH /api/memo-cards/{id}.
func (h *MemoCardHandler) Update(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	var req dto.UpdateMemoCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	card, err := h.store.UpdateMemoCard(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), repository.MemoCardUpdate{
		Translation:   req.Translation,
		Pronunciation: req.Pronunciation,
		ContextURL:    req.ContextURL,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, dto.ToMemoCardResponse(card))
}

// Delete handles DELETE /api/memo-cards/{id}. Soft delete; word cards
// belonging to the memo card go with it.
func (h *MemoCardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	if err := h.store.DeleteMemoCard(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Review handles POST /api/memo-cards/{id}/review.
func (h *MemoCardHandler) Review(w http.ResponseWriter, r *http.Request) {
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

	card, err := h.store.ReviewMemoCard(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), *req.Remembered)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, dto.ToMemoCardResponse(card))
}

func (h *MemoCardHandler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrMemoCardNotFound) {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "memo card not found"})
		return
	}
	writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "memo card operation failed", err))
}
