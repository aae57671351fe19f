// Package audit captures usage bookkeeping events for metered AI calls and
// persists them out of the request path.
package audit

import "fmt"

const (
	maxModelLength    = 100
	maxEndpointLength = 100
	maxRequestIDLen   = 100
)

// ValidateUsageEventPayload validates usage event payload fields.
func ValidateUsageEventPayload(payload UsageEventPayload) error {
	if payload.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if payload.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(payload.Model) > maxModelLength {
		return fmt.Errorf("model too long")
	}
	if payload.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if len(payload.Endpoint) > maxEndpointLength {
		return fmt.Errorf("endpoint too long")
	}
	if payload.InputTokens < 0 || payload.OutputTokens < 0 {
		return fmt.Errorf("token counts must be non-negative")
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	if len(payload.RequestID) > maxRequestIDLen {
		return fmt.Errorf("request_id too long")
	}
	return nil
}
