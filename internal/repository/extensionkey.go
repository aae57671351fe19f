package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"

	"github.com/bunn/bunn/internal/model"
)

// Common errors for extension key operations.
var (
	ErrExtensionKeyNotFound = errors.New("extension key not found")
	ErrExtensionKeyRevoked  = errors.New("extension key revoked")
)

const extensionKeyColumns = `
	id, user_id, name, key_hash, key_prefix, scopes, last_used_at, revoked_at, created_at
`

// CreateExtensionKey stores a new extension key record.
// The plaintext key never reaches this layer; only hash and prefix do.
func (r *Repository) CreateExtensionKey(ctx context.Context, key *model.ExtensionKey) error {
	key.ID = "ek_" + ulid.Make().String()
	key.CreatedAt = time.Now()

	query := `
		INSERT INTO extension_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.UserID,
		key.Name,
		key.KeyHash,
		key.KeyPrefix,
		pq.Array(key.Scopes),
		key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create extension key: %w", err)
	}

	return nil
}

// GetExtensionKeysByPrefix retrieves non-revoked keys matching a lookup
// prefix. Multiple rows can share a prefix; the caller verifies the hash
// against each candidate.
func (r *Repository) GetExtensionKeysByPrefix(ctx context.Context, prefix string) ([]*model.ExtensionKey, error) {
	query := `
		SELECT ` + extensionKeyColumns + `
		FROM extension_keys
		WHERE key_prefix = $1 AND revoked_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get extension keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.ExtensionKey
	for rows.Next() {
		key, err := scanExtensionKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extension key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate extension keys: %w", err)
	}

	return keys, nil
}

// ListExtensionKeys retrieves all of a user's keys, including revoked ones.
func (r *Repository) ListExtensionKeys(ctx context.Context, userID string) ([]*model.ExtensionKey, error) {
	query := `
		SELECT ` + extensionKeyColumns + `
		FROM extension_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list extension keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.ExtensionKey
	for rows.Next() {
		key, err := scanExtensionKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extension key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate extension keys: %w", err)
	}

	return keys, nil
}

// RevokeExtensionKey marks one of the user's keys revoked.
func (r *Repository) RevokeExtensionKey(ctx context.Context, userID, keyID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE extension_keys SET revoked_at = now()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`, keyID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke extension key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExtensionKeyNotFound
	}
	return nil
}

// TouchExtensionKey updates last_used_at. Called asynchronously from the
// auth path; failures are the caller's to swallow.
func (r *Repository) TouchExtensionKey(ctx context.Context, keyID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE extension_keys SET last_used_at = now() WHERE id = $1
	`, keyID)
	if err != nil {
		return fmt.Errorf("failed to touch extension key: %w", err)
	}
	return nil
}

func scanExtensionKey(row rowScanner) (*model.ExtensionKey, error) {
	var key model.ExtensionKey
	var scopes []string
	err := row.Scan(
		&key.ID,
		&key.UserID,
		&key.Name,
		&key.KeyHash,
		&key.KeyPrefix,
		pq.Array(&scopes),
		&key.LastUsedAt,
		&key.RevokedAt,
		&key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	key.Scopes = scopes
	return &key, nil
}
