// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bunn/bunn/internal/apierr"
	"github.com/bunn/bunn/internal/middleware"
)

// requestIDFrom pulls the request ID assigned by the middleware chain.
func requestIDFrom(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// envelope is the uniform response shape. Success responses carry data;
// error responses carry a client-safe message and numeric code.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"errorCode,omitempty"`
}

// writeSuccess writes a success envelope with the given status code.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError writes an error envelope. The HTTP status and numeric code
// come from the error's tag; untagged errors read as internal. The full
// error, cause included, goes to the log; the client only sees the tagged
// message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := apierr.CodeOf(err)
	status := code.HTTPStatus()

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "error_code", int(code))
	} else {
		logger.Debug("request rejected", "error", err, "error_code", int(code))
	}

	writeJSON(w, status, envelope{
		Success:   false,
		Error:     apierr.MessageOf(err),
		ErrorCode: int(code),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		_ = err
	}
}

// decodeJSON decodes a request body, tagging malformed payloads.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierr.Wrap(apierr.CodeMissingParameters, "invalid request body", err)
	}
	return nil
}

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "resource not found"})
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, envelope{Success: false, Error: "method not allowed"})
}
