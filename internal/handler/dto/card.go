package dto

import (
	"time"

	"github.com/bunn/bunn/internal/model"
)

// CreateMemoCardRequest is the body for creating a memo card.
type CreateMemoCardRequest struct {
	OriginalText  string `json:"original_text"`
	Translation   string `json:"translation"`
	Pronunciation string `json:"pronunciation,omitempty"`
	ContextURL    string `json:"context_url,omitempty"`
	Platform      string `json:"platform,omitempty"`
	SeriesTitle   string `json:"series_title,omitempty"`
}

// UpdateMemoCardRequest is the body for PATCH; nil fields stay unchanged.
type UpdateMemoCardRequest struct {
	Translation   *string `json:"translation,omitempty"`
	Pronunciation *string `json:"pronunciation,omitempty"`
	ContextURL    *string `json:"context_url,omitempty"`
}

// ReviewRequest records one study review outcome.
type ReviewRequest struct {
	Remembered *bool `json:"remembered"`
}

// MemoCardResponse represents a memo card in API responses.
type MemoCardResponse struct {
	ID            string    `json:"id"`
	SeriesID      *string   `json:"series_id,omitempty"`
	SeriesTitle   string    `json:"series_title,omitempty"`
	OriginalText  string    `json:"original_text"`
	Translation   string    `json:"translation"`
	Pronunciation string    `json:"pronunciation"`
	ContextURL    string    `json:"context_url,omitempty"`
	Platform      string    `json:"platform"`
	ReviewCount   int       `json:"review_count"`
	ForgetCount   int       `json:"forget_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MemoCardListResponse is a cursor-paginated memo card page.
type MemoCardListResponse struct {
	Data       []MemoCardResponse `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// Pagination provides cursor-based pagination info.
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// CreateWordCardRequest is the body for creating a word card.
type CreateWordCardRequest struct {
	MemoCardID    string `json:"memo_card_id"`
	Word          string `json:"word"`
	Meaning       string `json:"meaning"`
	Pronunciation string `json:"pronunciation,omitempty"`
}

// WordCardResponse represents a word card in API responses.
type WordCardResponse struct {
	ID            string    `json:"id"`
	MemoCardID    string    `json:"memo_card_id"`
	Word          string    `json:"word"`
	Meaning       string    `json:"meaning"`
	Pronunciation string    `json:"pronunciation"`
	ReviewCount   int       `json:"review_count"`
	ForgetCount   int       `json:"forget_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// WordCardListResponse is a list of word cards for one memo card.
type WordCardListResponse struct {
	Data []WordCardResponse `json:"data"`
}

// ToMemoCardResponse converts a MemoCard model to its response DTO.
func ToMemoCardResponse(card *model.MemoCard) MemoCardResponse {
	return MemoCardResponse{
		ID:            card.ID,
		SeriesID:      card.SeriesID,
		SeriesTitle:   card.SeriesTitle,
		OriginalText:  card.OriginalText,
		Translation:   card.Translation,
		Pronunciation: card.Pronunciation,
		ContextURL:    card.ContextURL,
		Platform:      string(card.Platform),
		ReviewCount:   card.ReviewCount,
		ForgetCount:   card.ForgetCount,
		CreatedAt:     card.CreatedAt,
		UpdatedAt:     card.UpdatedAt,
	}
}

// ToWordCardResponse converts a WordCard model to its response DTO.
func ToWordCardResponse(card *model.WordCard) WordCardResponse {
	return WordCardResponse{
		ID:            card.ID,
		MemoCardID:    card.MemoCardID,
		Word:          card.Word,
		Meaning:       card.Meaning,
		Pronunciation: card.Pronunciation,
		ReviewCount:   card.ReviewCount,
		ForgetCount:   card.ForgetCount,
		CreatedAt:     card.CreatedAt,
		UpdatedAt:     card.UpdatedAt,
	}
}
