package metrics

import (
	"sync"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AIRequests          map[string]uint64 // keyed "model|status"
	TokensInput         int64
	TokensOutput        int64
	LimitGateDenials    uint64
	WebhookEvents       map[string]uint64
	CardsCreated        map[string]uint64
	UsageEventPublished map[string]uint64
	UsageEventProcessed map[string]uint64
	AuditBatches        uint64
	AuditQueueDepth     int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu sync.Mutex

	aiRequests          map[string]uint64
	tokensInput         int64
	tokensOutput        int64
	limitGateDenials    uint64
	webhookEvents       map[string]uint64
	cardsCreated        map[string]uint64
	usageEventPublished map[string]uint64
	usageEventProcessed map[string]uint64
	auditBatches        uint64
	auditQueueDepth     int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		aiRequests:          make(map[string]uint64),
		webhookEvents:       make(map[string]uint64),
		cardsCreated:        make(map[string]uint64),
		usageEventPublished: make(map[string]uint64),
		usageEventProcessed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		AIRequests:          copyCounts(m.aiRequests),
		TokensInput:         m.tokensInput,
		TokensOutput:        m.tokensOutput,
		LimitGateDenials:    m.limitGateDenials,
		WebhookEvents:       copyCounts(m.webhookEvents),
		CardsCreated:        copyCounts(m.cardsCreated),
		UsageEventPublished: copyCounts(m.usageEventPublished),
		UsageEventProcessed: copyCounts(m.usageEventProcessed),
		AuditBatches:        m.auditBatches,
		AuditQueueDepth:     m.auditQueueDepth,
	}
}

// IncAIRequest increments the per-model, per-status request counter.
func (m *InMemoryRecorder) IncAIRequest(model, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aiRequests[model+"|"+status]++
}

// ObserveAIRequestDuration is tracked only as a count in memory.
func (m *InMemoryRecorder) ObserveAIRequestDuration(model string, duration time.Duration) {}

// AddTokensMetered accumulates metered token counts.
func (m *InMemoryRecorder) AddTokensMetered(direction string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if direction == "output" {
		m.tokensOutput += count
		return
	}
	m.tokensInput += count
}

// IncLimitGateDenied increments the denial counter.
func (m *InMemoryRecorder) IncLimitGateDenied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limitGateDenials++
}

// IncWebhookEvent increments the per-result webhook counter.
func (m *InMemoryRecorder) IncWebhookEvent(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookEvents[result]++
}

// IncCardCreated increments the per-kind card counter.
func (m *InMemoryRecorder) IncCardCreated(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cardsCreated[kind]++
}

// IncUsageEventPublished increments the publish outcome counter.
func (m *InMemoryRecorder) IncUsageEventPublished(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usageEventPublished[status]++
}

// IncUsageEventProcessed increments the processing outcome counter.
func (m *InMemoryRecorder) IncUsageEventProcessed(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usageEventProcessed[status]++
}

// ObserveAuditBatchSize counts processed batches.
func (m *InMemoryRecorder) ObserveAuditBatchSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditBatches++
}

// ObserveAuditBatchDuration is tracked only as a count in memory.
func (m *InMemoryRecorder) ObserveAuditBatchDuration(duration time.Duration) {}

// SetAuditQueueDepth records the latest queue depth.
func (m *InMemoryRecorder) SetAuditQueueDepth(depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditQueueDepth = depth
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
