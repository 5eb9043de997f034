package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fernwehlabs/lifelog/pkg/slogx"
)

// ErrorBody is the uniform error envelope every endpoint returns. It is
// self-contained: the code is machine-readable, the message human-readable,
// and the request id correlates with server logs for support.
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// WriteJSON writes a JSON response with the given status code. It sets
// Content-Type and no-store cache headers; token responses must never be
// cached by intermediaries.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard error envelope, pulling the request id from
// the context set by the logging middleware.
func WriteError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{
		Error:     code,
		Message:   message,
		RequestID: slogx.RequestIDFromContext(ctx),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
