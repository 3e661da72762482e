package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/facility-workbench/internal/models"
)

var errBadMode = errors.New(`mode must be "creating" or "editing"`)

// maxImageBytes bounds a single image upload.
const maxImageBytes = 8 << 20

// OpenForm opens the create or edit form.
func (s *Server) OpenForm(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	var req struct {
		Mode     models.FormMode `json:"mode"`
		TargetID string          `json:"target_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var err error
	switch req.Mode {
	case models.ModeCreating:
		err = sc.OpenCreate()
	case models.ModeEditing:
		if req.TargetID == "" {
			writeError(w, http.StatusBadRequest, "target_id is required when editing")
			return
		}
		err = sc.OpenEdit(r.Context(), req.TargetID)
	default:
		writeError(w, http.StatusBadRequest, errBadMode.Error())
		return
	}
	respond(w, sc, err)
}

func (s *Server) CloseForm(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	sc.CloseForm()
	writeJSON(w, http.StatusOK, sc.View())
}

func (s *Server) SetField(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	var req struct {
		Value interface{} `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, sc, sc.SetField(chi.URLParam(r, "name"), req.Value))
}

// AttachImage stages a multipart "file" part for an image field.
func (s *Server) AttachImage(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart file part \"file\": "+err.Error())
		return
	}
	defer file.Close()
	if _, err := sc.Form().AttachImage(chi.URLParam(r, "name"), header.Filename, file); err != nil {
		respond(w, sc, err)
		return
	}
	writeJSON(w, http.StatusOK, sc.View())
}

// SubmitForm validates and saves. Validation failures return 422 with the
// per-field errors and the view.
func (s *Server) SubmitForm(w http.ResponseWriter, r *http.Request) {
	sc := s.screenFor(w, r)
	if sc == nil {
		return
	}
	_, fields, err := sc.Submit(r.Context())
	if err != nil {
		writeScreenError(w, sc, err, fields)
		return
	}
	writeJSON(w, http.StatusOK, sc.View())
}
