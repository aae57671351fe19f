// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// AI proxy metrics
	IncAIRequest(model, status string) // status: "ok", "denied", "error"
	ObserveAIRequestDuration(model string, duration time.Duration)
	AddTokensMetered(direction string, count int64) // direction: "input" or "output"

	// Limit gate metrics
	IncLimitGateDenied()

	// Billing metrics
	IncWebhookEvent(result string) // result: "processed", "ignored", "invalid_signature", "error"

	// Card metrics
	IncCardCreated(kind string) // kind: "memo" or "word"

	// Usage audit pipeline metrics
	IncUsageEventPublished(status string) // status: "success" or "dropped"
	IncUsageEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveAuditBatchSize(size int)
	ObserveAuditBatchDuration(duration time.Duration)
	SetAuditQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
