package models

import (
	dErrors "catchcert/pkg/domain-errors"
)

// Status is the lifecycle state of a document.
//
// Invariants:
//   - Only DRAFT, PENDING and LOCKED are mutable via the mutation engine.
//   - COMPLETE, VOID and BLOCKED are terminal: nothing transitions out of them.
//   - LOCKED is the only mutable state that may still move back toward DRAFT.
//
// Status guards are enforced with conditional store updates (match on number
// plus the mutable status set), never with read-then-write, so concurrent
// transitions degrade to benign zero-match no-ops.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusLocked   Status = "LOCKED"
	StatusComplete Status = "COMPLETE"
	StatusVoid     Status = "VOID"
	StatusBlocked  Status = "BLOCKED"
)

var validStatuses = map[Status]bool{
	StatusDraft:    true,
	StatusPending:  true,
	StatusLocked:   true,
	StatusComplete: true,
	StatusVoid:     true,
	StatusBlocked:  true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid status %q", s)
	}
	return st, nil
}

// IsValid reports whether the status is one of the six lifecycle states.
func (s Status) IsValid() bool { return validStatuses[s] }

// Mutable reports whether the mutation engine may touch a document in this
// status.
func (s Status) Mutable() bool {
	return s == StatusDraft || s == StatusPending || s == StatusLocked
}

// Terminal reports whether the status is irreversible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusVoid || s == StatusBlocked
}

// CanTransitionTo reports whether the state machine permits moving from s to
// target. Any move out of a terminal state is forbidden.
func (s Status) CanTransitionTo(target Status) bool {
	return s.Mutable() && target.IsValid()
}

// MutableStatuses returns the set of statuses the mutation engine accepts,
// for use in conditional update filters.
func MutableStatuses() []Status {
	return []Status{StatusDraft, StatusPending, StatusLocked}
}

// CompletableStatuses returns the statuses completion may start from.
// LOCKED documents must be unlocked before they can complete.
func CompletableStatuses() []Status {
	return []Status{StatusDraft, StatusPending}
}
