// Package model defines domain entities for the application.
package model

import "time"

// DayKeyFormat is the layout for the daily usage window key segment.
const DayKeyFormat = "2006-01-02"

// UsageDay returns the usage-window day string for an instant.
// Counters accumulate per UTC calendar date.
func UsageDay(t time.Time) string {
	return t.UTC().Format(DayKeyFormat)
}

// DailyUsage is the read-side view of a user's counters for one day.
type DailyUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total is the number the limit gate compares against.
func (u DailyUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// UsageAuditRecord is the persisted bookkeeping row for one metered AI call.
// EventID is the Redis stream ID and doubles as the idempotency key for the
// batch insert.
type UsageAuditRecord struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Model        string    `json:"model"`
	Endpoint     string    `json:"endpoint"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	RequestID    string    `json:"request_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
