package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v78"

	"github.com/bunn/bunn/internal/apierr"
	"github.com/bunn/bunn/internal/auth"
	"github.com/bunn/bunn/internal/billing"
	"github.com/bunn/bunn/internal/handler/dto"
	"github.com/bunn/bunn/internal/metrics"
)

// maxWebhookBody caps webhook payload reads. Stripe events are small.
const maxWebhookBody = 1 << 20

// BillingService is the Stripe surface the handler needs.
type BillingService interface {
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
	HandleEvent(ctx context.Context, event stripe.Event) (billing.EventOutcome, error)
	CreateCheckoutSession(ctx context.Context, userID, email string) (string, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
}

// BillingHandler serves the Stripe webhook and the hosted-page endpoints.
type BillingHandler struct {
	svc     BillingService
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(svc BillingService, logger *slog.Logger, rec metrics.Recorder) *BillingHandler {
	if rec == nil {
		rec = metrics.NewNoop()
	}
	return &BillingHandler{svc: svc, logger: logger, metrics: rec}
}

// Webhook handles POST /api/stripe/webhook. The signature is verified
// against the raw body before anything else happens; a delivery that fails
// verification gets a 400 and changes no state. Processing errors return
// 500 so Stripe redelivers.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.metrics.IncWebhookEvent("error")
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to read payload", err))
		return
	}

	event, err := h.svc.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.metrics.IncWebhookEvent("invalid_signature")
		h.logger.Warn("webhook signature verification failed", "error", err)
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid signature"})
		return
	}

	outcome, err := h.svc.HandleEvent(r.Context(), event)
	if err != nil {
		h.metrics.IncWebhookEvent("error")
		h.logger.Error("webhook processing failed", "event_id", event.ID, "type", event.Type, "error", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "processing failed"})
		return
	}

	h.metrics.IncWebhookEvent(string(outcome))
	writeSuccess(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

// Checkout handles POST /api/stripe/checkout.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	url, err := h.svc.CreateCheckoutSession(r.Context(), authCtx.UserID, authCtx.Email)
	if err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to create checkout session", err))
		return
	}

	writeSuccess(w, http.StatusOK, dto.PortalSessionResponse{URL: url})
}

// Portal handles POST /api/stripe/portal.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return
	}

	url, err := h.svc.CreatePortalSession(r.Context(), authCtx.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrNoCustomer) {
			writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "no billing account for user"))
			return
		}
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to create portal session", err))
		return
	}

	writeSuccess(w, http.StatusOK, dto.PortalSessionResponse{URL: url})
}
