package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAIRequest is a no-op.
func (n *NoopRecorder) IncAIRequest(model, status string) {}

// ObserveAIRequestDuration is a no-op.
func (n *NoopRecorder) ObserveAIRequestDuration(model string, duration time.Duration) {}

// AddTokensMetered is a no-op.
func (n *NoopRecorder) AddTokensMetered(direction string, count int64) {}

// IncLimitGateDenied is a no-op.
func (n *NoopRecorder) IncLimitGateDenied() {}

// IncWebhookEvent is a no-op.
func (n *NoopRecorder) IncWebhookEvent(result string) {}

// IncCardCreated is a no-op.
func (n *NoopRecorder) IncCardCreated(kind string) {}

// IncUsageEventPublished is a no-op.
func (n *NoopRecorder) IncUsageEventPublished(status string) {}

// IncUsageEventProcessed is a no-op.
func (n *NoopRecorder) IncUsageEventProcessed(status string) {}

// ObserveAuditBatchSize is a no-op.
func (n *NoopRecorder) ObserveAuditBatchSize(size int) {}

// ObserveAuditBatchDuration is a no-op.
func (n *NoopRecorder) ObserveAuditBatchDuration(duration time.Duration) {}

// SetAuditQueueDepth is a no-op.
func (n *NoopRecorder) SetAuditQueueDepth(depth int64) {}
