package screen

import (
	"context"
	"fmt"

	"github.com/rflorenc/facility-workbench/internal/confirm"
	"github.com/rflorenc/facility-workbench/internal/models"
)

// Backend action endpoints, relative to an item path.
const (
	actionRole          = "role"
	actionResetPassword = "reset-password"
	actionStatus        = "status"
)

func (s *Screen) registerHandlers() {
	for _, kind := range s.schema.Actions {
		switch kind {
		case models.ActionDelete:
			s.confirm.Handle(kind, s.deleteItem)
		case models.ActionResetCredential:
			s.confirm.Handle(kind, s.resetCredential)
		case models.ActionToggleRole:
			s.confirm.Handle(kind, s.toggleRole)
		case models.ActionOther:
			s.confirm.Handle(kind, s.setStatus)
			s.confirm.Precheck(kind, requireStatus)
		}
	}
}

func label(p models.PendingConfirmation) string {
	if l, ok := p.Payload["label"].(string); ok && l != "" {
		return l
	}
	return "#" + p.TargetID
}

func (s *Screen) deleteItem(ctx context.Context, p models.PendingConfirmation) (confirm.Outcome, error) {
	if err := s.source.Remove(ctx, p.TargetID); err != nil {
		return confirm.Outcome{}, err
	}
	return confirm.Outcome{Message: fmt.Sprintf("%s %s deleted.", capitalize(s.singular()), label(p))}, nil
}

func (s *Screen) resetCredential(ctx context.Context, p models.PendingConfirmation) (confirm.Outcome, error) {
	item, err := s.source.Action(ctx, p.TargetID, actionResetPassword, map[string]interface{}{
		"password": p.Payload["password"],
	})
	if err != nil {
		return confirm.Outcome{}, err
	}
	return confirm.Outcome{Item: item, Message: fmt.Sprintf("Password of %s reset.", label(p))}, nil
}

func (s *Screen) toggleRole(ctx context.Context, p models.PendingConfirmation) (confirm.Outcome, error) {
	role := p.Payload["role"]
	item, err := s.source.Action(ctx, p.TargetID, actionRole, map[string]interface{}{actionRole: role})
	if err != nil {
		return confirm.Outcome{}, err
	}
	if item == nil {
		if cur, ok := s.list.Find(p.TargetID); ok {
			cur[s.schema.RoleField] = role
			item = cur
		}
	}
	return confirm.Outcome{Item: item, Message: fmt.Sprintf("Role of %s changed to %v.", label(p), role)}, nil
}

func (s *Screen) setStatus(ctx context.Context, p models.PendingConfirmation) (confirm.Outcome, error) {
	status, _ := p.Payload[actionStatus].(string)
	item, err := s.source.Action(ctx, p.TargetID, actionStatus, map[string]interface{}{actionStatus: status})
	if err != nil {
		return confirm.Outcome{}, err
	}
	return confirm.Outcome{Item: item, Message: fmt.Sprintf("%s %s marked %s.", capitalize(s.singular()), label(p), status)}, nil
}

func requireStatus(p models.PendingConfirmation) error {
	if status, _ := p.Payload[actionStatus].(string); status == "" {
		return &confirm.PrecheckError{Field: actionStatus, Message: "Choose a status."}
	}
	return nil
}
