package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"tally/internal/codec"
	"tally/internal/core"
)

// writeJSON serializes v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain and codec errors to HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "url", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrCategoryNotFound),
		errors.Is(err, core.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, codec.ErrDataTooLarge),
		errors.Is(err, codec.ErrPayloadTooLarge),
		errors.Is(err, codec.ErrImageGenerationFailed):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, codec.ErrMalformed),
		errors.Is(err, codec.ErrInvalidData),
		errors.Is(err, codec.ErrCorruptStream):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrMissingID),
		errors.Is(err, core.ErrZeroDate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// readBody reads at most limit bytes of the request body. Oversized bodies
// are rejected with ErrPayloadTooLarge so the caller maps them to 413.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			atomic.AddInt64(&s.metrics.oversizedRequests, 1)
			return nil, fmt.Errorf("%w: request body exceeds %d bytes", codec.ErrPayloadTooLarge, limit)
		}
		return nil, fmt.Errorf("%w: read request body: %v", codec.ErrInvalidData, err)
	}
	return data, nil
}

// decodeJSONBody parses a small JSON request body into v.
func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := s.readBody(w, r, 1<<20)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parse request body: %v", codec.ErrInvalidData, err)
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
