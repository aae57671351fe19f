// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// GenerateTextRequest is the body for the text generation endpoints.
type GenerateTextRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// TokenUsage reports the tokens metered for one call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// GenerateTextResponse is the non-streaming generation result.
type GenerateTextResponse struct {
	Text  string     `json:"text"`
	Model string     `json:"model"`
	Usage TokenUsage `json:"usage"`
}

// ExtractSubtitlesResponse is the vision extraction result.
type ExtractSubtitlesResponse struct {
	Text  string     `json:"text"`
	Model string     `json:"model"`
	Usage TokenUsage `json:"usage"`
}

// StreamDelta is one SSE frame of a streaming generation.
type StreamDelta struct {
	Delta string `json:"delta"`
}
