package repository

import (
	"context"
	"fmt"

	"github.com/bunn/bunn/internal/model"
)

// BulkInsertUsageAudit inserts a batch of usage audit rows.
// ON CONFLICT DO NOTHING on event_id makes redelivered stream messages
// idempotent.
func (r *Repository) BulkInsertUsageAudit(ctx context.Context, records []*model.UsageAuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	batchQuery := `
		INSERT INTO usage_audit (id, event_id, user_id, model, endpoint, input_tokens, output_tokens, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin audit insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = newAuditID()
		}
		if _, err := tx.Exec(ctx, batchQuery,
			rec.ID,
			rec.EventID,
			rec.UserID,
			rec.Model,
			rec.Endpoint,
			rec.InputTokens,
			rec.OutputTokens,
			rec.RequestID,
			rec.OccurredAt,
		); err != nil {
			return fmt.Errorf("insert audit row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit audit insert: %w", err)
	}

	return nil
}

// DailyAuditTotals sums a user's audited tokens for one usage day.
// Used by admin surfaces; the live limit gate reads Redis, not this table.
func (r *Repository) DailyAuditTotals(ctx context.Context, userID, day string) (model.DailyUsage, error) {
	var usage model.DailyUsage
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM usage_audit
		WHERE user_id = $1 AND to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') = $2
	`, userID, day).Scan(&usage.InputTokens, &usage.OutputTokens)
	if err != nil {
		return model.DailyUsage{}, fmt.Errorf("failed to sum audit totals: %w", err)
	}
	return usage, nil
}
