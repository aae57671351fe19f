package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bunn/bunn/internal/apierr"
	"github.com/bunn/bunn/internal/auth"
	"github.com/bunn/bunn/internal/handler/dto"
	"github.com/bunn/bunn/internal/model"
)

// UserStore resolves authenticated users to persisted rows.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, id, email string) (*model.User, error)
}

// SessionHandler serves the session snapshot the web app renders from:
// who the user is, their subscription state, and today's token budget.
type SessionHandler struct {
	users  UserStore
	gate   LimitGate
	logger *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(users UserStore, gate LimitGate, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{users: users, gate: gate, logger: logger}
}

// Get handles GET /api/user/session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	user, err := h.users.GetOrCreateUser(r.Context(), authCtx.UserID, authCtx.Email)
	if err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to load user", err))
		return
	}

	status, err := h.gate.Check(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, dto.SessionResponse{
		User: dto.SessionUser{ID: user.ID, Email: user.Email},
		Subscription: status.Subscription,
		Usage: dto.SessionUsage{
			UsedTokens: status.Usage.Total(),
			Limit:      status.Limit,
		},
	})
}
