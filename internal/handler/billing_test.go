package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	stripe "github.com/stripe/stripe-go/v78"

	"github.com/bunn/bunn/internal/billing"
)

type fakeBillingService struct {
	verifyErr    error
	handleErr    error
	outcome      billing.EventOutcome
	handled      []string
	checkoutURL  string
	portalURL    string
	portalErr    error
	checkoutErr  error
}

func (f *fakeBillingService) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if f.verifyErr != nil {
		return stripe.Event{}, f.verifyErr
	}
	return stripe.Event{ID: "evt_test", Type: "checkout.session.completed"}, nil
}

func (f *fakeBillingService) HandleEvent(ctx context.Context, event stripe.Event) (billing.EventOutcome, error) {
	f.handled = append(f.handled, event.ID)
	if f.handleErr != nil {
		return "", f.handleErr
	}
	return f.outcome, nil
}

func (f *fakeBillingService) CreateCheckoutSession(ctx context.Context, userID, email string) (string, error) {
	return f.checkoutURL, f.checkoutErr
}

func (f *fakeBillingService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	return f.portalURL, f.portalErr
}

func TestBillingHandler_WebhookInvalidSignature(t *testing.T) {
	t.Parallel()

	svc := &fakeBillingService{verifyErr: billing.ErrInvalidSignature}
	h := NewBillingHandler(svc, testLogger(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	w := httptest.NewRecorder()

	h.Webhook(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(svc.handled) != 0 {
		t.Error("event must not be processed when signature verification fails")
	}
}

func TestBillingHandler_WebhookProcessed(t *testing.T) {
	t.Parallel()

	svc := &fakeBillingService{outcome: billing.OutcomeProcessed}
	h := NewBillingHandler(svc, testLogger(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=good")
	w := httptest.NewRecorder()

	h.Webhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(svc.handled) != 1 {
		t.Errorf("handled = %d events, want 1", len(svc.handled))
	}
	if !strings.Contains(w.Body.String(), string(billing.OutcomeProcessed)) {
		t.Errorf("body = %q, want outcome status", w.Body.String())
	}
}

func TestBillingHandler_WebhookProcessingError(t *testing.T) {
	t.Parallel()

	svc := &fakeBillingService{handleErr: errors.New("database down")}
	h := NewBillingHandler(svc, testLogger(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.Webhook(w, req)

	// 500 so Stripe redelivers.
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestBillingHandler_Checkout(t *testing.T) {
	t.Parallel()

	svc := &fakeBillingService{checkoutURL: "https://checkout.stripe.com/c/pay/cs_test"}
	h := NewBillingHandler(svc, testLogger(), nil)

	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/stripe/checkout", nil), sessionAuth("user_1"))
	w := httptest.NewRecorder()

	h.Checkout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), svc.checkoutURL) {
		t.Errorf("body = %q, want checkout URL", w.Body.String())
	}
}

func TestBillingHandler_PortalNoCustomer(t *testing.T) {
	t.Parallel()

	svc := &fakeBillingService{portalErr: billing.ErrNoCustomer}
	h := NewBillingHandler(svc, testLogger(), nil)

	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/stripe/portal", nil), sessionAuth("user_1"))
	w := httptest.NewRecorder()

	h.Portal(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	env := decodeEnvelope(t, w.Body)
	if int(env["errorCode"].(float64)) != 2000 {
		t.Errorf("errorCode = %v, want 2000", env["errorCode"])
	}
}

func TestBillingHandler_AuthRequired(t *testing.T) {
	t.Parallel()

	h := NewBillingHandler(&fakeBillingService{}, testLogger(), nil)

	for _, call := range []struct {
		name string
		fn   http.HandlerFunc
	}{
		{"checkout", h.Checkout},
		{"portal", h.Portal},
	} {
		call := call
		t.Run(call.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			w := httptest.NewRecorder()

			call.fn(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}
