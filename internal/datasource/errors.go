package datasource

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrMalformedResponse marks a 2xx response whose body could not be understood.
var ErrMalformedResponse = errors.New("malformed response")

// GenericFailure is shown when nothing more specific is known.
const GenericFailure = "Something went wrong. Please try again."

// FetchError is a network or server failure. Status is 0 for transport errors.
type FetchError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// NotFoundError means the target record does not exist (404).
type NotFoundError struct {
	Path    string
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: not found: %s", e.Path, e.Message)
	}
	return e.Path + ": not found"
}

// ValidationError is a field-level rejection. Fields maps field -> message.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// errorBody covers the error shapes the backend family returns:
// {"message": "...", "errors": {"email": ["taken"]}}, {"error": "..."}, {"detail": "..."}.
type errorBody struct {
	Message string                     `json:"message"`
	Error   string                     `json:"error"`
	Detail  string                     `json:"detail"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

func classify(method, path string, status int, body []byte) error {
	var eb errorBody
	parsed := json.Unmarshal(body, &eb) == nil
	msg := ""
	if parsed {
		msg = firstNonEmpty(eb.Message, eb.Error, eb.Detail)
	}
	if msg == "" {
		msg = strings.TrimSpace(truncate(string(body), 200))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return &NotFoundError{Path: path, Message: msg}
	case status == http.StatusUnprocessableEntity,
		status == http.StatusBadRequest && parsed && len(eb.Errors) > 0:
		return &ValidationError{Message: msg, Fields: flattenFieldErrors(eb.Errors)}
	}
	return &FetchError{Method: method, Path: path, Status: status, Message: msg}
}

// flattenFieldErrors keeps the first message per field; values may be a
// string or a list of strings.
func flattenFieldErrors(raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for field, v := range raw {
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			if len(list) > 0 {
				out[field] = list[0]
			}
			continue
		}
		var single string
		if err := json.Unmarshal(v, &single); err == nil && single != "" {
			out[field] = single
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// UserMessage extracts a message fit for a toast: the server's message when
// it sent one, otherwise fallback (GenericFailure when fallback is empty).
func UserMessage(err error, fallback string) string {
	if fallback == "" {
		fallback = GenericFailure
	}
	if err == nil || errors.Is(err, ErrMalformedResponse) {
		return fallback
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Status == 0 || fe.Message == "" {
			return fallback
		}
		return fe.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Message != "" {
		return ve.Message
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return "The record no longer exists."
	}
	return fallback
}
