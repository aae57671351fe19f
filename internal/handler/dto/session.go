package dto

import "github.com/bunn/bunn/internal/model"

// SessionUser is the authenticated user in the session response.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SessionUsage is today's metering state for the session response.
type SessionUsage struct {
	UsedTokens int64 `json:"used_tokens"`
	Limit      int64 `json:"limit"`
}

// SessionResponse is the payload for GET /api/user/session.
type SessionResponse struct {
	User         SessionUser              `json:"user"`
	Subscription model.SubscriptionStatus `json:"subscription"`
	Usage        SessionUsage             `json:"usage"`
}

// PortalSessionResponse carries a Stripe-hosted page URL.
type PortalSessionResponse struct {
	URL string `json:"url"`
}
