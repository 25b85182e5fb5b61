package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zen-systems/switchboard/pkg/router"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, message string, details map[string]any) {
	s.respond(w, status, ErrorResponse{
		Error:   errorCode(status),
		Message: message,
		Details: details,
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limit_exceeded"
	case http.StatusBadGateway:
		return "bad_gateway"
	case http.StatusServiceUnavailable:
		return "no_backend_available"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}

// routerError maps routing errors onto HTTP replies.
func (s *Server) routerError(w http.ResponseWriter, err error) {
	var exhausted *router.CascadeExhaustedError
	switch {
	case errors.Is(err, router.ErrUnknownBackend):
		s.fail(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, router.ErrUnknownDecision):
		s.fail(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, router.ErrNoEligibleBackend):
		s.fail(w, http.StatusServiceUnavailable, err.Error(), nil)
	case errors.As(err, &exhausted):
		details := map[string]any{"attempts": exhausted.Attempts}
		if exhausted.Last != nil {
			details["last_backend"] = exhausted.Last.Backend
		}
		if len(exhausted.Reports) > 0 {
			details["reports"] = exhausted.Reports
		}
		s.fail(w, http.StatusBadGateway, err.Error(), details)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.fail(w, http.StatusGatewayTimeout, err.Error(), nil)
	default:
		s.logger.Error("internal error", zap.Error(err))
		s.fail(w, http.StatusInternalServerError, "an internal error occurred", nil)
	}
}
