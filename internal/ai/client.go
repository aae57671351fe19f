// Package ai wraps the OpenAI API for text generation, streaming, and
// subtitle extraction from screenshots.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bunn/bunn/internal/apierr"
)

// subtitleExtractionPrompt instructs the vision model. The extension sends
// frames from Japanese video players; anything that is not subtitle text
// (player chrome, watermarks) must be ignored.
const subtitleExtractionPrompt = `Extract the Japanese subtitle text visible in this video frame. ` +
	`Return only the subtitle text itself, with no commentary, translation, or formatting. ` +
	`If no subtitle text is visible, return an empty response.`

// Result is the outcome of a completed (non-streaming) model call.
type Result struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
	// Exact is true when the token counts came from the provider's usage
	// block rather than a local estimate.
	Exact bool
}

// Client is the OpenAI-backed AI provider.
type Client struct {
	api          *openai.Client
	defaultModel string
	visionModel  string
	logger       *slog.Logger
}

// New creates an AI client.
func New(apiKey, defaultModel, visionModel string, logger *slog.Logger) *Client {
	return &Client{
		api:          openai.NewClient(apiKey),
		defaultModel: defaultModel,
		visionModel:  visionModel,
		logger:       logger.With("component", "ai.client"),
	}
}

// ResolveModel maps a client-requested model to the one actually called.
// Empty means the configured default.
func (c *Client) ResolveModel(requested string) string {
	if requested == "" {
		return c.defaultModel
	}
	return requested
}

// VisionModel returns the model used for subtitle extraction.
func (c *Client) VisionModel() string {
	return c.visionModel
}

// GenerateText runs a single chat completion and returns the full response
// with the provider's exact token counts.
func (c *Client) GenerateText(ctx context.Context, prompt, model string) (Result, error) {
	model = c.ResolveModel(model)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return Result{}, mapProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, apierr.New(apierr.CodeAPIError, "ai provider returned no choices")
	}

	return Result{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
		Exact:        true,
	}, nil
}

// StreamText starts a streaming chat completion and returns a channel of
// content deltas. The channel closes when the stream ends for any reason;
// mid-stream errors are logged, not surfaced, since part of the response
// has already been sent.
func (c *Client) StreamText(ctx context.Context, prompt, model string) (<-chan string, error) {
	model = c.ResolveModel(model)

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, mapProviderError(err)
	}

	ch := make(chan string)

	go func() {
		defer stream.Close()
		defer close(ch)
		for {
			resp, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
					c.logger.Warn("stream interrupted", "model", model, "error", err)
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case ch <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// ExtractSubtitles sends a video frame to the vision model and returns the
// transcribed subtitle text with exact token counts.
func (c *Client) ExtractSubtitles(ctx context.Context, image []byte, mimeType string) (Result, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: subtitleExtractionPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return Result{}, mapProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, apierr.New(apierr.CodeAPIError, "ai provider returned no choices")
	}

	return Result{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
		Exact:        true,
	}, nil
}

// mapProviderError tags upstream failures with client-facing codes. Rate
// limiting gets its own code so clients can back off instead of retrying.
func mapProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return apierr.Wrap(apierr.CodeAPIRateLimited, "ai provider rate limited", err)
		}
		return apierr.Wrap(apierr.CodeAPIError, "ai provider error", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apierr.Wrap(apierr.CodeAPIError, "ai request cancelled", err)
	}
	return apierr.Wrap(apierr.CodeAPIError, "ai provider unavailable", err)
}
