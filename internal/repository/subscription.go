package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bunn/bunn/internal/model"
)

// ErrSubscriptionNotFound is returned when a user has no subscription row.
var ErrSubscriptionNotFound = errors.New("subscription not found")

const subscriptionColumns = `
	id, user_id, stripe_customer_id, start_time, end_time, created_at, updated_at
`

// GetSubscriptionByUserID retrieves the user's subscription row.
// There is at most one row per user; whether it is active is always
// computed by the caller from end_time, never stored.
func (r *Repository) GetSubscriptionByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
	`

	sub, err := scanSubscription(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// UpsertSubscription creates or extends the user's single subscription row
// for a successful payment. The whole operation runs in a transaction
// holding a per-user advisory lock, so concurrent webhook deliveries for
// the same user serialize instead of racing the insert/update decision.
func (r *Repository) UpsertSubscription(ctx context.Context, userID, stripeCustomerID string, start, end time.Time) (*model.Subscription, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Transaction-scoped lock keyed by user; released at commit/rollback.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return nil, fmt.Errorf("acquire subscription lock: %w", err)
	}

	query := `
		INSERT INTO subscriptions (id, user_id, stripe_customer_id, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			updated_at = now()
		RETURNING ` + subscriptionColumns

	sub, err := scanSubscription(tx.QueryRow(ctx, query,
		newSubscriptionID(),
		userID,
		stripeCustomerID,
		start,
		end,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}

	return sub, nil
}

// rowScanner abstracts pgx.Row so scan helpers work for pool and tx rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var sub model.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.StripeCustomerID,
		&sub.StartTime,
		&sub.EndTime,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
