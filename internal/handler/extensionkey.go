package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bunn/bunn/internal/apierr"
	"github.com/bunn/bunn/internal/auth"
	"github.com/bunn/bunn/internal/handler/dto"
	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/repository"
)

// ExtensionKeyStore is the persistence surface for extension key endpoints.
type ExtensionKeyStore interface {
	CreateExtensionKey(ctx context.Context, key *model.ExtensionKey) error
	ListExtensionKeys(ctx context.Context, userID string) ([]*model.ExtensionKey, error)
	RevokeExtensionKey(ctx context.Context, userID, keyID string) error
}

// ExtensionKeyHandler manages browser extension credentials. Minting and
// revoking requires a web session; a key cannot create or revoke keys.
type ExtensionKeyHandler struct {
	store  ExtensionKeyStore
	logger *slog.Logger
}

// NewExtensionKeyHandler creates an ExtensionKeyHandler.
func NewExtensionKeyHandler(store ExtensionKeyStore, logger *slog.Logger) *ExtensionKeyHandler {
	return &ExtensionKeyHandler{store: store, logger: logger}
}

// sessionOnly rejects extension key principals.
func (h *ExtensionKeyHandler) sessionOnly(w http.ResponseWriter, r *http.Request) *model.AuthContext {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return nil
	}
	if authCtx.Source != model.AuthSourceSession {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "key management requires a web session"))
		return nil
	}
	return authCtx
}

// Create handles POST /api/extension-keys. The plaintext key appears in
// this response and never again.
func (h *ExtensionKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	authCtx := h.sessionOnly(w, r)
	if authCtx == nil {
		return
	}

	var req dto.CreateExtensionKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "name is required"))
		return
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{model.ScopeCapture, model.ScopeCards}
	}
	for _, scope := range scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "invalid scope: "+scope))
			return
		}
	}

	generated, err := auth.GenerateExtensionKey(req.Env)
	if err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to generate key", err))
		return
	}

	key := &model.ExtensionKey{
		UserID:    authCtx.UserID,
		Name:      req.Name,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
	}
	if err := h.store.CreateExtensionKey(r.Context(), key); err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to store key", err))
		return
	}

	h.logger.Info("extension_key_created",
		"key_id", key.ID,
		"user_id", authCtx.UserID,
		"prefix", key.KeyPrefix,
		"scopes", scopes,
	)

	writeSuccess(w, http.StatusCreated, dto.CreateExtensionKeyResponse{
		Key:       dto.ToExtensionKeyResponse(key),
		Plaintext: generated.Plaintext,
	})
}

// List handles GET /api/extension-keys.
func (h *ExtensionKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	authCtx := h.sessionOnly(w, r)
	if authCtx == nil {
		return
	}

	keys, err := h.store.ListExtensionKeys(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to list keys", err))
		return
	}

	resp := dto.ExtensionKeyListResponse{Data: make([]dto.ExtensionKeyResponse, 0, len(keys))}
	for _, key := range keys {
		resp.Data = append(resp.Data, dto.ToExtensionKeyResponse(key))
	}

	writeSuccess(w, http.StatusOK, resp)
}

// Revoke handles DELETE /api/extension-keys/{id}. The auth-context cache
// entry for the key expires on its own TTL, so revocation takes effect
// within a few minutes at worst.
func (h *ExtensionKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	authCtx := h.sessionOnly(w, r)
	if authCtx == nil {
		return
	}

	if err := h.store.RevokeExtensionKey(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, repository.ErrExtensionKeyNotFound) {
			writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "extension key not found"})
			return
		}
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to revoke key", err))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"revoked": true})
}
