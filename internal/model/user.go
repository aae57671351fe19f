// Package model defines domain entities for the application.
package model

import "time"

// User represents an account referenced by learning artifacts and
// subscriptions. Identity is owned by the external auth provider; this row
// only mirrors the subject ID and email.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
