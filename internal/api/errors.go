package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/five82/crossbar/internal/matrix"
	"github.com/five82/crossbar/internal/reconcile"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeBadRequest  = "bad_request"
	CodeValidation  = "validation_error"
	CodeRejected    = "route_rejected"
	CodeUnreachable = "device_unreachable"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal_error"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("marshal response failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, Error{Status: status, Code: code, Message: message})
}

// respondControllerError maps coordinator errors onto HTTP statuses.
func respondControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, matrix.ErrOutOfRange):
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, reconcile.ErrRouteRejected):
		respondError(w, http.StatusConflict, CodeRejected, err.Error())
	case errors.Is(err, reconcile.ErrShutdown):
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
	// A device timeout also matches context.DeadlineExceeded; it is still a
	// transport failure.
	case matrix.IsTransport(err):
		respondError(w, http.StatusBadGateway, CodeUnreachable, err.Error())
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}
