// Package billing integrates Stripe: checkout and portal session creation
// plus webhook event processing.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/bunn/bunn/internal/model"
)

// ErrInvalidSignature is returned when the webhook signature does not
// verify. The handler maps it to a 400 with no state change.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrNoCustomer is returned when a portal session is requested for a user
// who has never completed a checkout.
var ErrNoCustomer = errors.New("user has no billing customer")

// ErrMissingReference is returned when a checkout completion carries no
// client reference, so the paying user cannot be resolved.
var ErrMissingReference = errors.New("checkout session has no client reference")

// Store is the persistence surface the billing service needs.
type Store interface {
	GetOrCreateUser(ctx context.Context, id, email string) (*model.User, error)
	GetSubscriptionByUserID(ctx context.Context, userID string) (*model.Subscription, error)
	UpsertSubscription(ctx context.Context, userID, stripeCustomerID string, start, end time.Time) (*model.Subscription, error)
}

// EventOutcome classifies what a webhook delivery did.
type EventOutcome string

const (
	OutcomeProcessed EventOutcome = "processed"
	OutcomeIgnored   EventOutcome = "ignored"
)

// Service wraps the Stripe API for subscription billing.
type Service struct {
	sc            *client.API
	store         Store
	webhookSecret string
	priceID       string
	successURL    string
	cancelURL     string
	returnURL     string
	logger        *slog.Logger
	now           func() time.Time
}

// Options configures the billing service.
type Options struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	SuccessURL    string
	CancelURL     string
	ReturnURL     string
}

// NewService creates a billing service.
func NewService(opts Options, store Store, logger *slog.Logger) *Service {
	sc := &client.API{}
	sc.Init(opts.SecretKey, nil)
	return &Service{
		sc:            sc,
		store:         store,
		webhookSecret: opts.WebhookSecret,
		priceID:       opts.PriceID,
		successURL:    opts.SuccessURL,
		cancelURL:     opts.CancelURL,
		returnURL:     opts.ReturnURL,
		logger:        logger.With("component", "billing"),
		now:           time.Now,
	}
}

// VerifyEvent checks the Stripe-Signature header against the raw payload
// and parses the event. Verification happens before anything else touches
// the payload; an unverified delivery never reaches the database.
func (s *Service) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// HandleEvent processes a verified webhook event. Unrecognized event types
// are acknowledged and ignored so Stripe stops redelivering them.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) (EventOutcome, error) {
	switch event.Type {
	case "checkout.session.completed":
		if err := s.handleCheckoutCompleted(ctx, event); err != nil {
			return "", err
		}
		return OutcomeProcessed, nil
	default:
		s.logger.Debug("ignoring webhook event", "type", event.Type)
		return OutcomeIgnored, nil
	}
}

// handleCheckoutCompleted grants one subscription term to the paying user.
// Retried deliveries re-run the upsert with a fresh window, which is
// harmless: the row converges to the latest delivery's term.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	userID := session.ClientReferenceID
	if userID == "" {
		return ErrMissingReference
	}

	email := ""
	if session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}
	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}

	if _, err := s.store.GetOrCreateUser(ctx, userID, email); err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	now := s.now()
	end := now.AddDate(0, 1, 0)

	sub, err := s.store.UpsertSubscription(ctx, userID, customerID, now, end)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	s.logger.Info("subscription extended",
		"user_id", userID,
		"subscription_id", sub.ID,
		"end_time", sub.EndTime,
	)
	return nil
}

// CreateCheckoutSession creates a Stripe Checkout session for the user.
// The user ID rides along as the client reference so the completion webhook
// can resolve the payer without a customer mapping table.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.priceID),
			Quantity: stripe.Int64(1),
		}},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := s.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a billing-portal session for the user's
// Stripe customer. Users who never checked out have no customer and get
// ErrNoCustomer.
func (s *Service) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	sub, err := s.store.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		return "", ErrNoCustomer
	}
	if sub.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}

	sess, err := s.sc.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(sub.StripeCustomerID),
		ReturnURL: stripe.String(s.returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}
