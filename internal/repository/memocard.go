package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bunn/bunn/internal/model"
)

// Common errors for card repository operations.
var (
	ErrMemoCardNotFound = errors.New("memo card not found")
	ErrWordCardNotFound = errors.New("word card not found")
	ErrInvalidCursor    = errors.New("invalid pagination cursor")
)

// PaginationCursor represents decoded cursor for pagination.
type PaginationCursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

const memoCardColumns = `
	m.id, m.user_id, m.series_id, COALESCE(s.title, ''), m.original_text,
	m.translation, m.pronunciation, m.context_url, m.platform,
	m.review_count, m.forget_count, m.created_at, m.updated_at, m.deleted_at
`

// CreateMemoCard inserts a new memo card. The ID is assigned here.
func (r *Repository) CreateMemoCard(ctx context.Context, card *model.MemoCard) error {
	card.ID = newMemoCardID()
	now := time.Now()
	card.CreatedAt = now
	card.UpdatedAt = now

	query := `
		INSERT INTO memo_cards (id, user_id, series_id, original_text, translation, pronunciation, context_url, platform, review_count, forget_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		card.ID,
		card.UserID,
		card.SeriesID,
		card.OriginalText,
		card.Translation,
		card.Pronunciation,
		card.ContextURL,
		card.Platform,
		card.ReviewCount,
		card.ForgetCount,
		card.CreatedAt,
		card.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create memo card: %w", err)
	}

	return nil
}

// GetMemoCard retrieves one of the user's memo cards with its series title.
func (r *Repository) GetMemoCard(ctx context.Context, userID, id string) (*model.MemoCard, error) {
	query := `
		SELECT ` + memoCardColumns + `
		FROM memo_cards m
		LEFT JOIN series s ON s.id = m.series_id
		WHERE m.id = $1 AND m.user_id = $2 AND m.deleted_at IS NULL
	`

	card, err := scanMemoCard(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemoCardNotFound
		}
		return nil, fmt.Errorf("failed to get memo card: %w", err)
	}

	return card, nil
}

// MemoCardFilter defines filters for listing memo cards.
type MemoCardFilter struct {
	UserID   string
	SeriesID string
	Platform model.Platform
}

// ListMemoCards retrieves a cursor-paginated list of the user's memo cards,
// newest first, joined with the series title.
func (r *Repository) ListMemoCards(ctx context.Context, filter MemoCardFilter, cursor string, limit int) ([]*model.MemoCard, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := `
		SELECT ` + memoCardColumns + `
		FROM memo_cards m
		LEFT JOIN series s ON s.id = m.series_id
		WHERE m.deleted_at IS NULL
		  AND m.user_id = $1
	`
	args := []any{filter.UserID}
	argIndex := 2

	if cursorData != nil {
		query += fmt.Sprintf(" AND (m.created_at, m.id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	if filter.SeriesID != "" {
		query += fmt.Sprintf(" AND m.series_id = $%d", argIndex)
		args = append(args, filter.SeriesID)
		argIndex++
	}

	if filter.Platform != "" {
		query += fmt.Sprintf(" AND m.platform = $%d", argIndex)
		args = append(args, filter.Platform)
		argIndex++
	}

	// Fetch one extra row to detect whether more pages exist.
	query += fmt.Sprintf(" ORDER BY m.created_at DESC, m.id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list memo cards: %w", err)
	}
	defer rows.Close()

	cards := make([]*model.MemoCard, 0, limit)
	for rows.Next() {
		card, err := scanMemoCard(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan memo card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate memo cards: %w", err)
	}

	var nextCursor string
	if len(cards) > limit {
		cards = cards[:limit]
		last := cards[len(cards)-1]
		nextCursor = encodeCursor(&PaginationCursor{ID: last.ID, CreatedAt: last.CreatedAt})
	}

	return cards, nextCursor, nil
}

// UpdateMemoCard applies non-nil field updates to one of the user's cards.
func (r *Repository) UpdateMemoCard(ctx context.Context, userID, id string, update MemoCardUpdate) (*model.MemoCard, error) {
	query := `
		UPDATE memo_cards m SET
			translation = COALESCE($3, translation),
			pronunciation = COALESCE($4, pronunciation),
			context_url = COALESCE($5, context_url),
			series_id = COALESCE($6, series_id),
			updated_at = now()
		WHERE m.id = $1 AND m.user_id = $2 AND m.deleted_at IS NULL
		RETURNING m.id
	`

	var returnedID string
	err := r.pool.QueryRow(ctx, query, id, userID,
		update.Translation,
		update.Pronunciation,
		update.ContextURL,
		update.SeriesID,
	).Scan(&returnedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemoCardNotFound
		}
		return nil, fmt.Errorf("failed to update memo card: %w", err)
	}

	return r.GetMemoCard(ctx, userID, id)
}

// MemoCardUpdate carries optional field updates; nil means unchanged.
type MemoCardUpdate struct {
	Translation   *string
	Pronunciation *string
	ContextURL    *string
	SeriesID      *string
}

// DeleteMemoCard soft-deletes one of the user's memo cards and its word
// cards.
func (r *Repository) DeleteMemoCard(ctx context.Context, userID, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE memo_cards SET deleted_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete memo card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemoCardNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE word_cards SET deleted_at = now()
		WHERE memo_card_id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID); err != nil {
		return fmt.Errorf("failed to delete word cards: %w", err)
	}

	return tx.Commit(ctx)
}

// ReviewMemoCard records a review outcome: remembered bumps review_count,
// forgotten bumps forget_count. Counters only ever increase.
func (r *Repository) ReviewMemoCard(ctx context.Context, userID, id string, remembered bool) (*model.MemoCard, error) {
	column := "forget_count"
	if remembered {
		column = "review_count"
	}

	query := fmt.Sprintf(`
		UPDATE memo_cards SET %s = %s + 1, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING id
	`, column, column)

	var returnedID string
	if err := r.pool.QueryRow(ctx, query, id, userID).Scan(&returnedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemoCardNotFound
		}
		return nil, fmt.Errorf("failed to review memo card: %w", err)
	}

	return r.GetMemoCard(ctx, userID, id)
}

// scanMemoCard scans a memo card row including the joined series title.
func scanMemoCard(row rowScanner) (*model.MemoCard, error) {
	var card model.MemoCard
	err := row.Scan(
		&card.ID,
		&card.UserID,
		&card.SeriesID,
		&card.SeriesTitle,
		&card.OriginalText,
		&card.Translation,
		&card.Pronunciation,
		&card.ContextURL,
		&card.Platform,
		&card.ReviewCount,
		&card.ForgetCount,
		&card.CreatedAt,
		&card.UpdatedAt,
		&card.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// encodeCursor serializes a pagination cursor as URL-safe base64 JSON.
func encodeCursor(cursor *PaginationCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// decodeCursor parses a pagination cursor.
func decodeCursor(cursor string) (*PaginationCursor, error) {
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	var decoded PaginationCursor
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal cursor: %w", err)
	}
	if decoded.ID == "" || decoded.CreatedAt.IsZero() {
		return nil, errors.New("incomplete cursor")
	}

	return &decoded, nil
}
