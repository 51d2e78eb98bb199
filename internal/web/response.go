package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/wardrobe/internal/addflow"
	"github.com/vbonduro/wardrobe/internal/auth"
	"github.com/vbonduro/wardrobe/internal/bgremove"
	"github.com/vbonduro/wardrobe/internal/domain"
)

const maxJSONBody = 1 << 20

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("request body required")
		}
		return domain.Invalid("invalid JSON: " + err.Error())
	}
	return nil
}

// writeError maps err onto a status code. Validation messages are returned
// to the caller; everything else gets a generic message and is logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrEmailTaken):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, addflow.ErrAbandoned):
		jsonError(w, http.StatusConflict, "flow abandoned")
	case errors.Is(err, bgremove.ErrRateLimited):
		jsonError(w, http.StatusTooManyRequests, "background removal rate limited")
	case errors.Is(err, domain.ErrExternal):
		s.logger.Error("external call failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusBadGateway, "upstream service failed")
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

func closeWithLog(c io.Closer, what string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close "+what, "error", err)
	}
}
