package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/bunn/bunn/internal/audit"
	"github.com/bunn/bunn/internal/metrics"
	"github.com/bunn/bunn/internal/model"
)

// recordTimeout bounds the background counter increment.
const recordTimeout = 2 * time.Second

// IncrementStore writes the live daily counters.
type IncrementStore interface {
	IncrementUsage(ctx context.Context, userID, modelName string, input, output int64, day string) error
}

// EventPublisher enqueues the durable bookkeeping event.
type EventPublisher interface {
	PublishAsync(event audit.UsageEventPayload)
}

// Record describes one metered AI call.
type Record struct {
	UserID       string
	Model        string
	Endpoint     string
	RequestID    string
	InputTokens  int64
	OutputTokens int64
}

// Recorder books consumed tokens after an AI call: the live Redis counters
// the gate reads, plus a durable audit event for the stream worker.
type Recorder struct {
	store     IncrementStore
	publisher EventPublisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewRecorder creates a usage recorder.
func NewRecorder(store IncrementStore, publisher EventPublisher, logger *slog.Logger, recorder metrics.Recorder) *Recorder {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Recorder{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "usage.recorder"),
		metrics:   recorder,
		now:       time.Now,
	}
}

// RecordAsync books a call's tokens without blocking the caller. Failures
// are logged, never surfaced: the user already received their response, and
// the cost of an occasional lost increment is bounded by the next request's
// gate check reading slightly low.
func (r *Recorder) RecordAsync(rec Record) {
	now := r.now()

	r.metrics.AddTokensMetered("input", rec.InputTokens)
	r.metrics.AddTokensMetered("output", rec.OutputTokens)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		day := model.UsageDay(now)
		if err := r.store.IncrementUsage(ctx, rec.UserID, rec.Model, rec.InputTokens, rec.OutputTokens, day); err != nil {
			r.logger.Error("failed to increment usage counters",
				"user_id", rec.UserID,
				"model", rec.Model,
				"error", err,
			)
		}
	}()

	if r.publisher != nil {
		r.publisher.PublishAsync(audit.UsageEventPayload{
			UserID:       rec.UserID,
			Model:        rec.Model,
			Endpoint:     rec.Endpoint,
			InputTokens:  rec.InputTokens,
			OutputTokens: rec.OutputTokens,
			RequestID:    rec.RequestID,
			OccurredAt:   now.UnixMilli(),
		})
	}
}

// RecordSync books a call's tokens and waits for the counter write. Used by
// tests and by callers that need read-your-write counter semantics.
func (r *Recorder) RecordSync(ctx context.Context, rec Record) error {
	now := r.now()

	r.metrics.AddTokensMetered("input", rec.InputTokens)
	r.metrics.AddTokensMetered("output", rec.OutputTokens)

	if r.publisher != nil {
		r.publisher.PublishAsync(audit.UsageEventPayload{
			UserID:       rec.UserID,
			Model:        rec.Model,
			Endpoint:     rec.Endpoint,
			InputTokens:  rec.InputTokens,
			OutputTokens: rec.OutputTokens,
			RequestID:    rec.RequestID,
			OccurredAt:   now.UnixMilli(),
		})
	}

	return r.store.IncrementUsage(ctx, rec.UserID, rec.Model, rec.InputTokens, rec.OutputTokens, model.UsageDay(now))
}
