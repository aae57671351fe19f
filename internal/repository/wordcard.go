package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bunn/bunn/internal/model"
)

const wordCardColumns = `
	id, user_id, memo_card_id, word, meaning, pronunciation,
	review_count, forget_count, created_at, updated_at, deleted_at
`

// CreateWordCard inserts a new word card under one of the user's memo
// cards. The memo card must exist and belong to the same user.
func (r *Repository) CreateWordCard(ctx context.Context, card *model.WordCard) error {
	if _, err := r.GetMemoCard(ctx, card.UserID, card.MemoCardID); err != nil {
		return err
	}

	card.ID = newWordCardID()
	now := time.Now()
	card.CreatedAt = now
	card.UpdatedAt = now

	query := `
		INSERT INTO word_cards (id, user_id, memo_card_id, word, meaning, pronunciation, review_count, forget_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		card.ID,
		card.UserID,
		card.MemoCardID,
		card.Word,
		card.Meaning,
		card.Pronunciation,
		card.ReviewCount,
		card.ForgetCount,
		card.CreatedAt,
		card.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create word card: %w", err)
	}

	return nil
}

// GetWordCard retrieves one of the user's word cards.
func (r *Repository) GetWordCard(ctx context.Context, userID, id string) (*model.WordCard, error) {
	query := `
		SELECT ` + wordCardColumns + `
		FROM word_cards
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`

	card, err := scanWordCard(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWordCardNotFound
		}
		return nil, fmt.Errorf("failed to get word card: %w", err)
	}

	return card, nil
}

// ListWordCards retrieves the user's word cards, optionally scoped to one
// memo card, newest first.
func (r *Repository) ListWordCards(ctx context.Context, userID, memoCardID string, limit int) ([]*model.WordCard, error) {
	query := `
		SELECT ` + wordCardColumns + `
		FROM word_cards
		WHERE user_id = $1 AND deleted_at IS NULL
	`
	args := []any{userID}

	if memoCardID != "" {
		query += " AND memo_card_id = $2"
		args = append(args, memoCardID)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list word cards: %w", err)
	}
	defer rows.Close()

	cards := make([]*model.WordCard, 0, limit)
	for rows.Next() {
		card, err := scanWordCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan word card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate word cards: %w", err)
	}

	return cards, nil
}

// DeleteWordCard soft-deletes one of the user's word cards.
func (r *Repository) DeleteWordCard(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE word_cards SET deleted_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete word card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWordCardNotFound
	}
	return nil
}

// ReviewWordCard records a review outcome on a word card.
func (r *Repository) ReviewWordCard(ctx context.Context, userID, id string, remembered bool) (*model.WordCard, error) {
	column := "forget_count"
	if remembered {
		column = "review_count"
	}

	query := fmt.Sprintf(`
		UPDATE word_cards SET %s = %s + 1, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING `+wordCardColumns, column, column)

	card, err := scanWordCard(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWordCardNotFound
		}
		return nil, fmt.Errorf("failed to review word card: %w", err)
	}

	return card, nil
}

func scanWordCard(row rowScanner) (*model.WordCard, error) {
	var card model.WordCard
	err := row.Scan(
		&card.ID,
		&card.UserID,
		&card.MemoCardID,
		&card.Word,
		&card.Meaning,
		&card.Pronunciation,
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
