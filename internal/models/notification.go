package models

import "time"

// NotificationKind is the tone of a toast.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notification is one ephemeral user-facing message.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	CreatedAt time.Time        `json:"created_at"`
}

// PendingConfirmation is a destructive action waiting for the user to confirm.
type PendingConfirmation struct {
	Action      ActionKind             `json:"action"`
	TargetID    string                 `json:"target_id"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Error       string                 `json:"error,omitempty"` // inline precheck message
	RequestedAt time.Time              `json:"requested_at"`
}
