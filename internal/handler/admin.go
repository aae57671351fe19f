package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/bunn/bunn/internal/apierr"
	"github.com/bunn/bunn/internal/auth"
	"github.com/bunn/bunn/internal/model"
)

// AdminUsageReader reads both sides of the usage bookkeeping: the live
// Redis counters the gate uses and the audited Postgres totals.
type AdminUsageReader interface {
	DailyUsage(ctx context.Context, userID, day string) (model.DailyUsage, error)
}

// AdminAuditReader sums the durable audit rows.
type AdminAuditReader interface {
	DailyAuditTotals(ctx context.Context, userID, day string) (model.DailyUsage, error)
}

// AdminHandler provides admin-only endpoints for debugging and operations.
type AdminHandler struct {
	live   AdminUsageReader
	audit  AdminAuditReader
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(live AdminUsageReader, audit AdminAuditReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{live: live, audit: audit, logger: logger}
}

// UsageReportResponse compares live counters against audited rows for one
// user and day. The audited side lags the live side by the worker's batch
// interval; a persistent gap means dropped events.
type UsageReportResponse struct {
	UserID  string           `json:"user_id"`
	Day     string           `json:"day"`
	Live    model.DailyUsage `json:"live"`
	Audited model.DailyUsage `json:"audited"`
}

// adminOnly requires an extension key carrying the admin scope. Web
// sessions pass every scope check, so admin surfaces need the explicit
// grant instead.
func (h *AdminHandler) adminOnly(w http.ResponseWriter, r *http.Request) *model.AuthContext {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return nil
	}
	if authCtx.Source != model.AuthSourceExtensionKey || !slices.Contains(authCtx.Scopes, model.ScopeAdmin) {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "admin scope required"))
		return nil
	}
	return authCtx
}

// UsageReport handles GET /api/admin/usage?user_id={id}&day={YYYY-MM-DD}.
// Day defaults to the current UTC day.
func (h *AdminHandler) UsageReport(w http.ResponseWriter, r *http.Request) {
	if h.adminOnly(w, r) == nil {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "user_id is required"))
		return
	}
	day := r.URL.Query().Get("day")
	if day == "" {
		day = model.UsageDay(time.Now())
	} else if _, err := time.Parse(model.DayKeyFormat, day); err != nil {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "day must be YYYY-MM-DD"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	live, err := h.live.DailyUsage(ctx, userID, day)
	if err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to read live usage", err))
		return
	}
	audited, err := h.audit.DailyAuditTotals(ctx, userID, day)
	if err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to read audited usage", err))
		return
	}

	writeSuccess(w, http.StatusOK, UsageReportResponse{
		UserID:  userID,
		Day:     day,
		Live:    live,
		Audited: audited,
	})
}
