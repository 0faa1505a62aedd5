package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	e "github.com/gartstein/employees/internal/employees/errors"
	"go.uber.org/zap"
)

const maxRequestBytes = 1 << 20

type searchRequest struct {
	Search string `json:"search"`
}

type orderRequest struct {
	OrderBy string `json:"orderBy"`
}

type deletionResponse struct {
	PendingID *int64 `json:"pendingId,omitempty"`
	DeletedID *int64 `json:"deletedId,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// parseID converts a path parameter into a positive employee id.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid employee id %q", e.ErrInvalidInput, raw)
	}
	return id, nil
}

// queryInt reads an optional positive integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", e.ErrInvalidInput, name)
	}
	return v, nil
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched
// when optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", e.ErrInvalidInput, err)
	}
	if len(body) == 0 {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: request body required", e.ErrInvalidInput)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	return nil
}

// mapServiceError maps domain errors to HTTP status codes.
func (h *EmployeeHandler) mapServiceError(err error) int {
	switch {
	case errors.Is(err, e.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, e.ErrNoPendingDelete), errors.Is(err, e.ErrSessionState):
		return http.StatusConflict
	case errors.Is(err, e.ErrRemote), errors.Is(err, e.ErrTransport), errors.Is(err, e.ErrDecode):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *EmployeeHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := h.mapServiceError(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", code),
		)
	} else {
		h.logger.Debug("Request rejected",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.Int("status", code),
		)
	}
	h.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (h *EmployeeHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func writeAttachment(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
