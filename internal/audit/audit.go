// Package audit emits document lifecycle events. Emission is best-effort:
// the service logs publisher failures and never fails the operation over
// them, because the store write has already committed.
package audit

import (
	"context"
	"time"
)

// Action identifies the lifecycle event that occurred.
type Action string

const (
	ActionDocumentCreated   Action = "document.created"
	ActionDocumentPatched   Action = "document.patched"
	ActionStatusChanged     Action = "document.status_changed"
	ActionDocumentCompleted Action = "document.completed"
	ActionDocumentCloned    Action = "document.cloned"
	ActionDocumentDeleted   Action = "document.deleted"
)

// Event is a single audit record.
type Event struct {
	ID             string         `json:"id"`
	Action         Action         `json:"action"`
	DocumentNumber string         `json:"documentNumber"`
	Owner          string         `json:"owner"`
	At             time.Time      `json:"at"`
	Details        map[string]any `json:"details,omitempty"`
}

// Publisher delivers audit events to wherever the deployment sends them.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close()
}

// NopPublisher discards events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) error { return nil }
func (NopPublisher) Close()                            {}
