// Package model defines domain entities for the application.
package model

import "time"

// Subscription is the one billing row kept per user. It is created on the
// first successful payment and extended in place on each renewal; rows are
// never hard-deleted.
//
// There is no background expiry sweep. Whether a subscription is active is
// always computed at read time from EndTime.
type Subscription struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	StripeCustomerID string    `json:"-"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ActiveAt reports whether the subscription entitles the user to elevated
// limits at the given instant.
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s != nil && s.EndTime.After(now)
}

// SubscriptionStatus is the read-side projection returned to clients.
type SubscriptionStatus struct {
	Active     bool       `json:"active"`
	ExpiryTime *time.Time `json:"expiryTime,omitempty"`
}

// StatusAt derives the client-facing status from a subscription row, which
// may be nil when the user has never paid.
func StatusAt(s *Subscription, now time.Time) SubscriptionStatus {
	if s == nil {
		return SubscriptionStatus{Active: false}
	}
	expiry := s.EndTime
	return SubscriptionStatus{
		Active:     s.ActiveAt(now),
		ExpiryTime: &expiry,
	}
}

// EffectiveLimit scales the base daily token limit by the subscription
// multiplier when the subscription is active. A non-positive base limit
// means metering is disabled and is passed through unchanged.
func EffectiveLimit(base, multiplier int64, s *Subscription, now time.Time) int64 {
	if base <= 0 {
		return base
	}
	if multiplier > 1 && s.ActiveAt(now) {
		return base * multiplier
	}
	return base
}
