package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/repository"
)

type fakeStore struct {
	users   map[string]*model.User
	sub     *model.Subscription
	upserts []upsertCall
}

type upsertCall struct {
	userID     string
	customerID string
	start      time.Time
	end        time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*model.User)}
}

func (f *fakeStore) GetOrCreateUser(_ context.Context, id, email string) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	u := &model.User{ID: id, Email: email}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) GetSubscriptionByUserID(context.Context, string) (*model.Subscription, error) {
	if f.sub == nil {
		return nil, repository.ErrSubscriptionNotFound
	}
	return f.sub, nil
}

func (f *fakeStore) UpsertSubscription(_ context.Context, userID, customerID string, start, end time.Time) (*model.Subscription, error) {
	f.upserts = append(f.upserts, upsertCall{userID, customerID, start, end})
	f.sub = &model.Subscription{
		ID:               "sub_test",
		UserID:           userID,
		StripeCustomerID: customerID,
		StartTime:        start,
		EndTime:          end,
	}
	return f.sub, nil
}

func newTestService(store *fakeStore, now time.Time) *Service {
	svc := NewService(Options{
		SecretKey:     "sk_test_x",
		WebhookSecret: "whsec_test",
	}, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return now }
	return svc
}

func signedPayload(t *testing.T, body []byte, secret string) (payload []byte, header string) {
	t.Helper()
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, body, secret)
	return body, fmt.Sprintf("t=%d,v1=%x", ts.Unix(), sig)
}

func checkoutEventJSON(t *testing.T, session map[string]any) []byte {
	t.Helper()
	obj, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	body, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"type":        "checkout.session.completed",
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": json.RawMessage(obj)},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

func TestVerifyEvent_InvalidSignature(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, time.Now())

	body := checkoutEventJSON(t, map[string]any{"client_reference_id": "user-1"})

	_, err := svc.VerifyEvent(body, "t=123,v1=deadbeef")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(store.upserts) != 0 {
		t.Error("invalid signature must not write anything")
	}
}

func TestVerifyEvent_ValidSignature(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), time.Now())

	body, header := signedPayload(t, checkoutEventJSON(t, map[string]any{
		"client_reference_id": "user-1",
	}), "whsec_test")

	event, err := svc.VerifyEvent(body, header)
	if err != nil {
		t.Fatalf("VerifyEvent: %v", err)
	}
	if string(event.Type) != "checkout.session.completed" {
		t.Errorf("event type = %s", event.Type)
	}
}

func TestHandleEvent_CheckoutCompleted(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(store, now)

	raw, _ := json.Marshal(map[string]any{
		"client_reference_id": "user-1",
		"customer":            map[string]any{"id": "cus_123"},
		"customer_details":    map[string]any{"email": "mika@example.com"},
	})
	event := stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if outcome != OutcomeProcessed {
		t.Errorf("outcome = %s, want processed", outcome)
	}

	if len(store.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserts))
	}
	call := store.upserts[0]
	if call.userID != "user-1" || call.customerID != "cus_123" {
		t.Errorf("upsert = %+v", call)
	}
	if !call.start.Equal(now) {
		t.Errorf("start = %v, want %v", call.start, now)
	}
	if want := now.AddDate(0, 1, 0); !call.end.Equal(want) {
		t.Errorf("end = %v, want %v", call.end, want)
	}

	if _, ok := store.users["user-1"]; !ok {
		t.Error("paying user should be ensured in the store")
	}
}

func TestHandleEvent_MissingClientReference(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, time.Now())

	raw, _ := json.Marshal(map[string]any{"customer": map[string]any{"id": "cus_1"}})
	event := stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}

	_, err := svc.HandleEvent(context.Background(), event)
	if !errors.Is(err, ErrMissingReference) {
		t.Fatalf("expected ErrMissingReference, got %v", err)
	}
	if len(store.upserts) != 0 {
		t.Error("unresolvable payer must not write anything")
	}
}

func TestHandleEvent_IgnoresOtherTypes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, time.Now())

	for _, typ := range []string{"invoice.paid", "customer.subscription.deleted", "charge.refunded"} {
		event := stripe.Event{Type: stripe.EventType(typ), Data: &stripe.EventData{Raw: []byte(`{}`)}}
		outcome, err := svc.HandleEvent(context.Background(), event)
		if err != nil {
			t.Fatalf("HandleEvent(%s): %v", typ, err)
		}
		if outcome != OutcomeIgnored {
			t.Errorf("outcome for %s = %s, want ignored", typ, outcome)
		}
	}
	if len(store.upserts) != 0 {
		t.Error("ignored events must not write anything")
	}
}

func TestHandleEvent_RedeliveryConverges(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(store, now)

	raw, _ := json.Marshal(map[string]any{
		"client_reference_id": "user-1",
		"customer":            map[string]any{"id": "cus_123"},
	})
	event := stripe.Event{Type: "checkout.session.completed", Data: &stripe.EventData{Raw: raw}}

	for i := 0; i < 2; i++ {
		if _, err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("HandleEvent delivery %d: %v", i+1, err)
		}
	}

	// Both deliveries target the same single row; the final window matches
	// the last delivery.
	if store.sub.UserID != "user-1" {
		t.Errorf("sub.UserID = %s", store.sub.UserID)
	}
	if want := now.AddDate(0, 1, 0); !store.sub.EndTime.Equal(want) {
		t.Errorf("EndTime = %v, want %v", store.sub.EndTime, want)
	}
}

func TestCreatePortalSession_NoCustomer(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, time.Now())

	_, err := svc.CreatePortalSession(context.Background(), "user-1")
	if !errors.Is(err, ErrNoCustomer) {
		t.Fatalf("expected ErrNoCustomer for user without subscription, got %v", err)
	}

	store.sub = &model.Subscription{UserID: "user-1", StripeCustomerID: ""}
	_, err = svc.CreatePortalSession(context.Background(), "user-1")
	if !errors.Is(err, ErrNoCustomer) {
		t.Fatalf("expected ErrNoCustomer for subscription without customer, got %v", err)
	}
}
