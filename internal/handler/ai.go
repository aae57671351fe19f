package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bunn/bunn/internal/ai"
	"github.com/bunn/bunn/internal/apierr"
	"github.com/bunn/bunn/internal/auth"
	"github.com/bunn/bunn/internal/handler/dto"
	"github.com/bunn/bunn/internal/metrics"
	"github.com/bunn/bunn/internal/model"
	"github.com/bunn/bunn/internal/tokencount"
	"github.com/bunn/bunn/internal/usage"
)

// maxImageSize caps the decoded subtitle screenshot size.
const maxImageSize = 4 << 20

// Generator is the AI provider surface the handler needs.
type Generator interface {
	ResolveModel(requested string) string
	VisionModel() string
	GenerateText(ctx context.Context, prompt, model string) (ai.Result, error)
	StreamText(ctx context.Context, prompt, model string) (<-chan string, error)
	ExtractSubtitles(ctx context.Context, image []byte, mimeType string) (ai.Result, error)
}

// LimitGate decides whether a metered call may proceed.
type LimitGate interface {
	Check(ctx context.Context, userID string) (usage.Status, error)
}

// UsageRecorder books consumed tokens after a call.
type UsageRecorder interface {
	RecordAsync(rec usage.Record)
}

// AIHandler proxies generation requests to the model provider behind the
// daily token limit gate.
type AIHandler struct {
	generator     Generator
	gate          LimitGate
	recorder      UsageRecorder
	counter       *tokencount.Counter
	logger        *slog.Logger
	metrics       metrics.Recorder
	maxPromptSize int
}

// NewAIHandler creates an AIHandler.
func NewAIHandler(generator Generator, gate LimitGate, recorder UsageRecorder, counter *tokencount.Counter, logger *slog.Logger, rec metrics.Recorder, maxPromptSize int) *AIHandler {
	if rec == nil {
		rec = metrics.NewNoop()
	}
	return &AIHandler{
		generator:     generator,
		gate:          gate,
		recorder:      recorder,
		counter:       counter,
		logger:        logger,
		metrics:       rec,
		maxPromptSize: maxPromptSize,
	}
}

// checkGate authenticates scope and budget for one metered call. Returns
// the auth context, or writes the error response and returns nil.
func (h *AIHandler) checkGate(w http.ResponseWriter, r *http.Request) *model.AuthContext {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "authentication required"))
		return nil
	}
	if !authCtx.HasScope(model.ScopeCapture) {
		writeError(w, h.logger, apierr.New(apierr.CodeUnauthorized, "key lacks capture scope"))
		return nil
	}

	status, err := h.gate.Check(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return nil
	}
	if !status.Allowed() {
		h.metrics.IncAIRequest("", "denied")
		writeError(w, h.logger, usage.Deny())
		return nil
	}
	return authCtx
}

// GenerateText handles POST /api/ai/generate-text.
func (h *AIHandler) GenerateText(w http.ResponseWriter, r *http.Request) {
	authCtx := h.checkGate(w, r)
	if authCtx == nil {
		return
	}

	var req dto.GenerateTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "prompt is required"))
		return
	}
	if h.maxPromptSize > 0 && len(req.Prompt) > h.maxPromptSize {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "prompt too long"))
		return
	}

	modelName := h.generator.ResolveModel(req.Model)
	start := time.Now()

	result, err := h.generator.GenerateText(r.Context(), req.Prompt, modelName)
	h.metrics.ObserveAIRequestDuration(modelName, time.Since(start))
	if err != nil {
		h.metrics.IncAIRequest(modelName, "error")
		writeError(w, h.logger, err)
		return
	}
	h.metrics.IncAIRequest(modelName, "ok")

	input, output := h.resolveCounts(result, req.Prompt, modelName)
	h.recorder.RecordAsync(usage.Record{
		UserID:       authCtx.UserID,
		Model:        modelName,
		Endpoint:     r.URL.Path,
		RequestID:    requestIDFrom(r),
		InputTokens:  input,
		OutputTokens: output,
	})

	h.logger.Info("text_generated",
		"user_id", authCtx.UserID,
		"model", modelName,
		"input_tokens", input,
		"output_tokens", output,
	)

	writeSuccess(w, http.StatusOK, dto.GenerateTextResponse{
		Text:  result.Text,
		Model: modelName,
		Usage: dto.TokenUsage{InputTokens: input, OutputTokens: output},
	})
}

// GenerateTextStream handles POST /api/ai/generate-text-stream. The
// response is SSE: one data frame per content delta, terminated by a
// [DONE] frame. Usage is estimated from the prompt and the accumulated
// output once the stream ends.
func (h *AIHandler) GenerateTextStream(w http.ResponseWriter, r *http.Request) {
	authCtx := h.checkGate(w, r)
	if authCtx == nil {
		return
	}

	var req dto.GenerateTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "prompt is required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, apierr.New(apierr.CodeInternal, "streaming not supported"))
		return
	}

	modelName := h.generator.ResolveModel(req.Model)
	start := time.Now()

	deltas, err := h.generator.StreamText(r.Context(), req.Prompt, modelName)
	if err != nil {
		h.metrics.IncAIRequest(modelName, "error")
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var output strings.Builder
	for delta := range deltas {
		output.WriteString(delta)
		frame, err := json.Marshal(dto.StreamDelta{Delta: delta})
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", frame)
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	h.metrics.ObserveAIRequestDuration(modelName, time.Since(start))
	h.metrics.IncAIRequest(modelName, "ok")

	input := h.counter.Count(req.Prompt, modelName)
	outTokens := h.counter.Count(output.String(), modelName)
	h.recorder.RecordAsync(usage.Record{
		UserID:       authCtx.UserID,
		Model:        modelName,
		Endpoint:     r.URL.Path,
		RequestID:    requestIDFrom(r),
		InputTokens:  input,
		OutputTokens: outTokens,
	})

	h.logger.Info("text_streamed",
		"user_id", authCtx.UserID,
		"model", modelName,
		"input_tokens", input,
		"output_tokens", outTokens,
	)
}

// ExtractSubtitles handles POST /api/ai/extract-subtitles. The frame
// arrives as a multipart upload in the "image" field.
func (h *AIHandler) ExtractSubtitles(w http.ResponseWriter, r *http.Request) {
	authCtx := h.checkGate(w, r)
	if authCtx == nil {
		return
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeMissingImage, "image file is required", err))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeMissingImage, "image file is required", err))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		writeError(w, h.logger, apierr.Wrap(apierr.CodeInternal, "failed to read image", err))
		return
	}
	if len(image) > maxImageSize {
		writeError(w, h.logger, apierr.New(apierr.CodeMissingParameters, "image too large"))
		return
	}

	modelName := h.generator.VisionModel()
	start := time.Now()

	result, err := h.generator.ExtractSubtitles(r.Context(), image, header.Header.Get("Content-Type"))
	h.metrics.ObserveAIRequestDuration(modelName, time.Since(start))
	if err != nil {
		h.metrics.IncAIRequest(modelName, "error")
		writeError(w, h.logger, err)
		return
	}
	h.metrics.IncAIRequest(modelName, "ok")

	h.recorder.RecordAsync(usage.Record{
		UserID:       authCtx.UserID,
		Model:        modelName,
		Endpoint:     r.URL.Path,
		RequestID:    requestIDFrom(r),
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
	})

	h.logger.Info("subtitles_extracted",
		"user_id", authCtx.UserID,
		"model", modelName,
		"image_bytes", len(image),
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
	)

	writeSuccess(w, http.StatusOK, dto.ExtractSubtitlesResponse{
		Text:  result.Text,
		Model: modelName,
		Usage: dto.TokenUsage{InputTokens: result.InputTokens, OutputTokens: result.OutputTokens},
	})
}

// resolveCounts prefers the provider's exact counts, falling back to local
// estimates when the provider omitted them.
func (h *AIHandler) resolveCounts(result ai.Result, prompt, modelName string) (input, output int64) {
	if result.Exact && (result.InputTokens > 0 || result.OutputTokens > 0) {
		return result.InputTokens, result.OutputTokens
	}
	return h.counter.Count(prompt, modelName), h.counter.Count(result.Text, modelName)
}
