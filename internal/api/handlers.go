package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type setInputRequest struct {
	Input *int `json:"input"`
}

type healthResponse struct {
	Status       string `json:"status"`
	Availability string `json:"availability"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.ctl.Snapshot()
	respondJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Availability: snap.Availability.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.ctl.Snapshot().Document())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Refresh(r.Context()); err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.ctl.Snapshot().Document())
}

func (s *Server) handleSetInput(w http.ResponseWriter, r *http.Request) {
	output, err := strconv.Atoi(chi.URLParam(r, "output"))
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid output %q", chi.URLParam(r, "output")))
		return
	}

	var req setInputRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if req.Input == nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "input is required")
		return
	}

	if err := s.ctl.SetOutputInput(r.Context(), output, *req.Input); err != nil {
		respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.ctl.Snapshot().Document())
}
