// Package confirm gates destructive actions behind an explicit confirmation.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/models"
)

// MinCredentialLength is the shortest password a reset will send.
const MinCredentialLength = 8

var (
	ErrNothingPending = errors.New("no action awaiting confirmation")
	ErrAlreadyPending = errors.New("another action is awaiting confirmation")
	ErrInProgress     = errors.New("confirmation already executing")
	ErrUnsupported    = errors.New("action not supported for this resource")
)

// PrecheckError is a local precondition failure. The confirmation stays
// pending so the user can correct the input.
type PrecheckError struct {
	Field   string
	Message string
}

func (e *PrecheckError) Error() string {
	return fmt.Sprintf("precheck failed on %s: %s", e.Field, e.Message)
}

// Outcome is what a confirmed action produced.
type Outcome struct {
	Kind     models.ActionKind
	TargetID string
	Message  string
	Item     models.Item // updated record, when the backend returned one
	Gone     bool        // the target no longer exists
}

// Handler executes one kind of action against the backend.
type Handler func(ctx context.Context, p models.PendingConfirmation) (Outcome, error)

// Precheck validates a pending confirmation before its handler runs.
type Precheck func(p models.PendingConfirmation) error

// Notifier is the part of notify.Center used here.
type Notifier interface {
	Success(message string) models.Notification
	Error(message string) models.Notification
	Info(message string) models.Notification
}

// Action holds at most one PendingConfirmation.
type Action struct {
	notifier  Notifier
	handlers  map[models.ActionKind]Handler
	prechecks map[models.ActionKind]Precheck

	mu      sync.Mutex
	pending *models.PendingConfirmation
	running bool
}

// New creates an Action with the credential-length precheck installed.
func New(notifier Notifier) *Action {
	return &Action{
		notifier:  notifier,
		handlers:  make(map[models.ActionKind]Handler),
		prechecks: map[models.ActionKind]Precheck{models.ActionResetCredential: CheckCredential},
	}
}

// Handle registers the handler for a kind.
func (a *Action) Handle(kind models.ActionKind, h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[kind] = h
}

// Precheck registers an additional precheck for a kind, replacing any existing one.
func (a *Action) Precheck(kind models.ActionKind, p Precheck) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prechecks[kind] = p
}

// Request stores a PendingConfirmation. Nothing runs until Confirm.
func (a *Action) Request(kind models.ActionKind, targetID string, payload map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.handlers[kind]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	if a.pending != nil {
		return ErrAlreadyPending
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	a.pending = &models.PendingConfirmation{
		Action:      kind,
		TargetID:    targetID,
		Payload:     payload,
		RequestedAt: time.Now(),
	}
	return nil
}

// SetPayload updates one payload value of the pending confirmation, e.g. the
// new password typed into a reset dialog. It clears any precheck message.
func (a *Action) SetPayload(key string, value interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return ErrNothingPending
	}
	a.pending.Payload[key] = value
	a.pending.Error = ""
	return nil
}

// Pending returns a copy of the pending confirmation, or nil.
func (a *Action) Pending() *models.PendingConfirmation {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return nil
	}
	p := *a.pending
	p.Payload = make(map[string]interface{}, len(a.pending.Payload))
	for k, v := range a.pending.Payload {
		p.Payload[k] = v
	}
	return &p
}

// Cancel clears the pending confirmation without side effects.
func (a *Action) Cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil || a.running {
		return false
	}
	a.pending = nil
	return true
}

// Confirm runs the handler for the pending confirmation. A failed precheck
// keeps the confirmation pending; otherwise it is cleared whatever the
// result. A missing target is reported as information, not a failure.
func (a *Action) Confirm(ctx context.Context) (Outcome, error) {
	a.mu.Lock()
	if a.pending == nil {
		a.mu.Unlock()
		return Outcome{}, ErrNothingPending
	}
	if a.running {
		a.mu.Unlock()
		return Outcome{}, ErrInProgress
	}
	p := *a.pending
	if check, ok := a.prechecks[p.Action]; ok {
		if err := check(p); err != nil {
			msg := err.Error()
			var pe *PrecheckError
			if errors.As(err, &pe) {
				msg = pe.Message
			}
			a.pending.Error = msg
			a.mu.Unlock()
			a.notifier.Error(msg)
			return Outcome{}, err
		}
	}
	h := a.handlers[p.Action]
	a.running = true
	a.mu.Unlock()

	out, err := h(ctx, p)
	out.Kind, out.TargetID = p.Action, p.TargetID

	a.mu.Lock()
	a.running = false
	a.pending = nil
	a.mu.Unlock()

	switch {
	case err == nil:
		if out.Message == "" {
			out.Message = "Done."
		}
		a.notifier.Success(out.Message)
		slog.Info("confirm_event", "event", "executed", "action", p.Action, "target", p.TargetID)
		return out, nil
	case datasource.IsNotFound(err):
		out.Gone = true
		out.Message = "That record no longer exists."
		a.notifier.Info(out.Message)
		slog.Info("confirm_event", "event", "target_gone", "action", p.Action, "target", p.TargetID)
		return out, nil
	default:
		a.notifier.Error(datasource.UserMessage(err, ""))
		slog.Warn("confirm_event", "event", "failed", "action", p.Action, "target", p.TargetID, "error", err)
		return out, err
	}
}

// CheckCredential requires payload["password"] to be at least
// MinCredentialLength characters.
func CheckCredential(p models.PendingConfirmation) error {
	pw, _ := p.Payload["password"].(string)
	if utf8.RuneCountInString(pw) < MinCredentialLength {
		return &PrecheckError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters.", MinCredentialLength),
		}
	}
	return nil
}
