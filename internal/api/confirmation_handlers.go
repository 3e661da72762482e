package api

import (
	"net/http"

	"github.com/rflorenc/facility-workbench/internal/models"
)

// RequestConfirmation asks for confirmation of a row action.
func (s *Server) RequestConfirmation(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	var req struct {
		Action   models.ActionKind      `json:"action"`
		TargetID string                 `json:"target_id"`
		Payload  map[string]interface{} `json:"payload"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TargetID == "" {
		writeError(w, http.StatusBadRequest, "target_id is required")
		return
	}
	respond(w, sc, sc.RequestAction(req.Action, req.TargetID, req.Payload))
}

// SetConfirmationValue fills a payload value, e.g. the new password.
func (s *Server) SetConfirmationValue(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	var req struct {
		Key   string      `json:"key"`
		Value interface{} `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, sc, sc.SetConfirmationValue(req.Key, req.Value))
}

// Confirm executes the pending action. Backend failures were already turned
// into notifications; the response is the refreshed view.
func (s *Server) Confirm(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	_, err := sc.Confirm(r.Context())
	respondAfterFetch(w, sc, err)
}

func (s *Server) CancelConfirmation(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	sc.CancelConfirmation()
	writeJSON(w, http.StatusOK, sc.View())
}
