//go:build integration

package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/testutil"
)

// ============================================================================
// Audit Pipeline Integration Tests (Redis)
// ============================================================================

type capturingRepository struct {
	mu      sync.Mutex
	records []*model.UsageAuditRecord
}

func (c *capturingRepository) BulkInsertUsageAudit(ctx context.Context, records []*model.UsageAuditRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, records...)
	return nil
}

func (c *capturingRepository) all() []*model.UsageAuditRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.UsageAuditRecord, len(c.records))
	copy(out, c.records)
	return out
}

func newAuditTestEnv(t *testing.T) (context.Context, *redis.Client) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() {
		_ = client.Close()
	})

	if err := testutil.FlushRedis(ctx, client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	return ctx, client
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntegrationAuditPipeline_PublishToPersist(t *testing.T) {
	ctx, client := newAuditTestEnv(t)

	publisher := NewPublisher(client, discardLogger(), nil)
	repo := &capturingRepository{}
	worker := NewWorker(client, repo, discardLogger(), NewConsumerID(), nil)
	worker.SetBlockTimeout(100 * time.Millisecond)

	occurred := time.Now().UnixMilli()
	events := []UsageEventPayload{
		{UserID: "user_1", Model: "gpt-4o-mini", Endpoint: "/api/ai/generate-text", InputTokens: 100, OutputTokens: 400, OccurredAt: occurred},
		{UserID: "user_1", Model: "gpt-4o-mini", Endpoint: "/api/ai/generate-text-stream", InputTokens: 20, OutputTokens: 80, OccurredAt: occurred},
	}
	for _, event := range events {
		if _, err := publisher.Publish(ctx, event); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = worker.Run(runCtx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(repo.all()) == len(events) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 2*time.Second)
	defer shutdownCancel()
	if err := worker.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	records := repo.all()
	if len(records) != len(events) {
		t.Fatalf("persisted %d records, want %d", len(records), len(events))
	}
	for _, rec := range records {
		if rec.UserID != "user_1" || rec.EventID == "" {
			t.Errorf("record missing identity: %+v", rec)
		}
	}

	// Everything acked: no pending entries left in the consumer group.
	pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
	if err != nil {
		t.Fatalf("XPending failed: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("pending count = %d, want 0", pending.Count)
	}
}

func TestIntegrationAuditPipeline_MalformedEventGoesToDeadLetter(t *testing.T) {
	ctx, client := newAuditTestEnv(t)

	// Bypass the publisher to enqueue garbage the parser must reject.
	if err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		ID:     "*",
		Values: map[string]interface{}{"payload": "not json"},
	}).Err(); err != nil {
		t.Fatalf("XAdd failed: %v", err)
	}

	repo := &capturingRepository{}
	worker := NewWorker(client, repo, discardLogger(), NewConsumerID(), nil)
	worker.SetBlockTimeout(100 * time.Millisecond)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = worker.Run(runCtx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	var dlqLen int64
	for time.Now().Before(deadline) {
		dlqLen, _ = client.XLen(ctx, DeadLetterStreamKey).Result()
		if dlqLen > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 2*time.Second)
	defer shutdownCancel()
	_ = worker.Shutdown(shutdownCtx)

	if dlqLen != 1 {
		t.Fatalf("dead letter stream length = %d, want 1", dlqLen)
	}
	if len(repo.all()) != 0 {
		t.Errorf("malformed event reached the repository")
	}
}
