// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Scope constants for extension key authorization.
const (
	ScopeCapture = "capture" // subtitle capture + AI endpoints
	ScopeCards   = "cards"   // memo/word card CRUD
	ScopeAdmin   = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeCapture, ScopeCards, ScopeAdmin}

// ExtensionKey is a long-lived credential held by the browser extension so
// it can call the API without a web session. Only the argon2id hash and a
// short lookup prefix are stored.
type ExtensionKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"` // Never expose
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key can no longer authenticate.
func (k *ExtensionKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope checks whether the key grants the given scope.
// Admin grants everything.
func (k *ExtensionKey) HasScope(scope string) bool {
	if slices.Contains(k.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(k.Scopes, scope)
}

// AuthContext carries the authenticated principal through a request.
// Source distinguishes web sessions from extension keys.
type AuthContext struct {
	UserID string
	Email  string
	Source AuthSource
	KeyID  string   // set for extension keys
	Scopes []string // set for extension keys; nil means full session access
}

// AuthSource identifies how a request authenticated.
type AuthSource string

const (
	AuthSourceSession      AuthSource = "session"
	AuthSourceExtensionKey AuthSource = "extension_key"
)

// HasScope reports whether the principal may use the given scope.
// Web sessions are not scoped.
func (a *AuthContext) HasScope(scope string) bool {
	if a.Source == AuthSourceSession {
		return true
	}
	if slices.Contains(a.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(a.Scopes, scope)
}
