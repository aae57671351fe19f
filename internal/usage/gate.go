// Package usage implements daily token metering: the limit gate that fronts
// every AI call and the recorder that books consumed tokens afterwards.
package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bunn/bunn/internal/apierr"
	"github.com/bunn/bunn/internal/metrics"
	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/repository"
)

// retryDelay is the pause before the single counter re-read on failure.
const retryDelay = 50 * time.Millisecond

// Store reads the live daily counters.
type Store interface {
	DailyUsage(ctx context.Context, userID, day string) (model.DailyUsage, error)
}

// SubscriptionSource looks up the user's billing row.
type SubscriptionSource interface {
	GetSubscriptionByUserID(ctx context.Context, userID string) (*model.Subscription, error)
}

// Status is the gate's view of a user at one instant. It doubles as the
// payload for the session endpoint.
type Status struct {
	Usage        model.DailyUsage         `json:"usage"`
	Limit        int64                    `json:"limit"`
	Subscription model.SubscriptionStatus `json:"subscription"`
}

// Allowed reports whether another metered call may proceed. A non-positive
// limit disables metering entirely.
func (s Status) Allowed() bool {
	return s.Limit <= 0 || s.Usage.Total() < s.Limit
}

// Gate decides whether a user may make another metered AI call today.
type Gate struct {
	store      Store
	subs       SubscriptionSource
	baseLimit  int64
	multiplier int64
	logger     *slog.Logger
	metrics    metrics.Recorder
	now        func() time.Time
}

// NewGate creates a limit gate.
func NewGate(store Store, subs SubscriptionSource, baseLimit, multiplier int64, logger *slog.Logger, recorder metrics.Recorder) *Gate {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Gate{
		store:      store,
		subs:       subs,
		baseLimit:  baseLimit,
		multiplier: multiplier,
		logger:     logger.With("component", "usage.gate"),
		metrics:    recorder,
		now:        time.Now,
	}
}

// Check reads today's counters and the subscription row and decides whether
// the user is still under their effective limit.
//
// The counter read fails closed: one retry after a short pause, then an
// error. Losing Redis must not turn into unmetered spend against the
// upstream provider. The subscription read degrades instead of failing; a
// user checked while Postgres is down gets the base limit, never a denial.
//
// Check-then-act is not atomic with the recorder's increment, so a burst of
// concurrent calls near the boundary can each pass and overshoot the limit
// by up to one request's tokens. The next Check sees the settled counters
// and denies.
func (g *Gate) Check(ctx context.Context, userID string) (Status, error) {
	now := g.now()
	day := model.UsageDay(now)

	used, err := g.store.DailyUsage(ctx, userID, day)
	if err != nil {
		g.logger.Warn("usage read failed, retrying", "user_id", userID, "error", err)

		select {
		case <-ctx.Done():
			return Status{}, apierr.Wrap(apierr.CodeInternal, "usage check unavailable", ctx.Err())
		case <-time.After(retryDelay):
		}

		used, err = g.store.DailyUsage(ctx, userID, day)
		if err != nil {
			g.logger.Error("usage read failed after retry", "user_id", userID, "error", err)
			return Status{}, apierr.Wrap(apierr.CodeInternal, "usage check unavailable", err)
		}
	}

	sub := g.subscription(ctx, userID)

	status := Status{
		Usage:        used,
		Limit:        model.EffectiveLimit(g.baseLimit, g.multiplier, sub, now),
		Subscription: model.StatusAt(sub, now),
	}

	if !status.Allowed() {
		g.metrics.IncLimitGateDenied()
		g.logger.Info("token limit reached",
			"user_id", userID,
			"used", status.Usage.Total(),
			"limit", status.Limit,
		)
	}

	return status, nil
}

// Deny is the tagged error returned to clients when the gate blocks a call.
func Deny() error {
	return apierr.New(apierr.CodeTokenLimitExceeded, "daily token limit exceeded")
}

// subscription loads the billing row, treating both "no row" and lookup
// failure as "no subscription". The failure mode only ever lowers the limit.
func (g *Gate) subscription(ctx context.Context, userID string) *model.Subscription {
	sub, err := g.subs.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		if !isNotFound(err) {
			g.logger.Warn("subscription lookup failed, using base limit",
				"user_id", userID, "error", err)
		}
		return nil
	}
	return sub
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrSubscriptionNotFound)
}
