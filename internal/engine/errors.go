package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrSessionExpired reports that the engine no longer knows the session or
// rejected its token. Callers reinitialize instead of surfacing it.
var ErrSessionExpired = errors.New("engine session expired")

// APIError is a non-2xx response that is not a session expiry.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("engine %s %s returned status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("engine %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Detail)
}

// classify maps an error response to ErrSessionExpired or *APIError.
func classify(method, path string, status int, body []byte) error {
	detail := errorDetail(body)
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, path, ErrSessionExpired)
	case status == http.StatusNotFound && strings.Contains(strings.ToLower(detail), "session not found"):
		return fmt.Errorf("%s %s: %w", method, path, ErrSessionExpired)
	}
	return &APIError{Method: method, Path: path, Status: status, Detail: detail}
}

// errorDetail extracts the "detail" member of an error body. Validation
// errors carry a list there; it is returned as raw JSON.
func errorDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return trimmed
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}
