// Package model defines domain entities for the application.
package model

import "time"

// Platform identifies where a memo card was captured.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformNetflix Platform = "netflix"
	PlatformWeb     Platform = "web"
)

// ValidPlatforms contains all accepted capture platforms.
var ValidPlatforms = []Platform{PlatformYouTube, PlatformNetflix, PlatformWeb}

// IsValidPlatform checks if a platform value is accepted.
func IsValidPlatform(p Platform) bool {
	for _, v := range ValidPlatforms {
		if v == p {
			return true
		}
	}
	return false
}

// Series groups memo cards captured from the same show or channel.
type Series struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Platform  Platform  `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoCard is a saved original-text/translation/pronunciation learning
// record captured from a video platform or entered by hand.
type MemoCard struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	SeriesID      *string    `json:"series_id,omitempty"`
	SeriesTitle   string     `json:"series_title,omitempty"` // joined, not stored
	OriginalText  string     `json:"original_text"`
	Translation   string     `json:"translation"`
	Pronunciation string     `json:"pronunciation"`
	ContextURL    string     `json:"context_url,omitempty"`
	Platform      Platform   `json:"platform"`
	ReviewCount   int        `json:"review_count"`
	ForgetCount   int        `json:"forget_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"-"`
}

// IsDeleted returns true if the card is soft-deleted.
func (m *MemoCard) IsDeleted() bool {
	return m.DeletedAt != nil
}

// WordCard is a single-word study record extracted from a memo card.
type WordCard struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	MemoCardID    string     `json:"memo_card_id"`
	Word          string     `json:"word"`
	Meaning       string     `json:"meaning"`
	Pronunciation string     `json:"pronunciation"`
	ReviewCount   int        `json:"review_count"`
	ForgetCount   int        `json:"forget_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"-"`
}

// IsDeleted returns true if the card is soft-deleted.
func (w *WordCard) IsDeleted() bool {
	return w.DeletedAt != nil
}
