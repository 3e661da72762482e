package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rflorenc/facility-workbench/internal/confirm"
	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/form"
	"github.com/rflorenc/facility-workbench/internal/listing"
	"github.com/rflorenc/facility-workbench/internal/resources"
	"github.com/rflorenc/facility-workbench/internal/screen"
	"github.com/rflorenc/facility-workbench/internal/session"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	View   *screen.View      `json:"view,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		pe *confirm.PrecheckError
		ve *datasource.ValidationError
		fe *datasource.FetchError
	)
	switch {
	case errors.Is(err, form.ErrInvalid), errors.As(err, &pe), errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, screen.ErrModalOpen),
		errors.Is(err, form.ErrAlreadyOpen),
		errors.Is(err, form.ErrNotOpen),
		errors.Is(err, form.ErrSubmitting),
		errors.Is(err, confirm.ErrAlreadyPending),
		errors.Is(err, confirm.ErrNothingPending),
		errors.Is(err, confirm.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, form.ErrUnknownField),
		errors.Is(err, form.ErrDerivedField),
		errors.Is(err, form.ErrNotImage),
		errors.Is(err, listing.ErrNotSortable),
		errors.Is(err, listing.ErrUnknownFilter),
		errors.Is(err, confirm.ErrUnsupported),
		errors.Is(err, screen.ErrNoTarget):
		return http.StatusBadRequest
	case errors.Is(err, screen.ErrClosed):
		return http.StatusGone
	case errors.Is(err, session.ErrInvalidCredentials), errors.Is(err, session.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, resources.ErrUnknownResource), datasource.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &fe):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeScreenError reports err together with the screen's current view so
// the client can re-render without another round trip.
func writeScreenError(w http.ResponseWriter, sc *screen.Screen, err error, fields map[string]string) {
	v := sc.View()
	msg := err.Error()
	var pe *confirm.PrecheckError
	switch {
	case errors.As(err, &pe):
		msg = pe.Message
	case statusFor(err) == http.StatusBadGateway, statusFor(err) == http.StatusUnprocessableEntity && !errors.Is(err, form.ErrInvalid):
		msg = datasource.UserMessage(err, "")
	}
	writeJSON(w, statusFor(err), errorResponse{Error: msg, Fields: fields, View: &v})
}
