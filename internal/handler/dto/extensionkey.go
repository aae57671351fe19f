package dto

import (
	"time"

	"github.com/bunn/bunn/internal/model"
)

// CreateExtensionKeyRequest is the body for minting an extension key.
type CreateExtensionKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes,omitempty"`
	Env    string   `json:"env,omitempty"` // "live" or "test"
}

// CreateExtensionKeyResponse carries the plaintext key exactly once.
type CreateExtensionKeyResponse struct {
	Key       ExtensionKeyResponse `json:"key"`
	Plaintext string               `json:"plaintext"`
}

// ExtensionKeyResponse represents an extension key without its secret.
type ExtensionKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ExtensionKeyListResponse is the user's extension keys.
type ExtensionKeyListResponse struct {
	Data []ExtensionKeyResponse `json:"data"`
}

// ToExtensionKeyResponse converts an ExtensionKey model to its DTO.
func ToExtensionKeyResponse(key *model.ExtensionKey) ExtensionKeyResponse {
	return ExtensionKeyResponse{
		ID:         key.ID,
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		Scopes:     key.Scopes,
		LastUsedAt: key.LastUsedAt,
		RevokedAt:  key.RevokedAt,
		CreatedAt:  key.CreatedAt,
	}
}
