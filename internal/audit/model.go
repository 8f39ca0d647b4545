// Package audit keeps the append-only record of moderation decisions on
// diary entries.
package audit

import (
	"slices"
	"time"
)

// Action is the kind of decision recorded.
type Action string

const (
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
	ActionDeleted  Action = "deleted"
)

// AllowedActions is the exhaustive list of recordable actions.
var AllowedActions = []Action{ActionApproved, ActionRejected, ActionDeleted}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return slices.Contains(AllowedActions, a)
}

// SystemActor is recorded as the actor of administrative operations that
// carry no user identity.
const SystemActor = "system"

// Entry is a single audit record. Entries are never modified or removed,
// including after the diary entry they reference is deleted.
type Entry struct {
	ID      string    `json:"id"`
	EntryID string    `json:"entry_id"`
	ActorID string    `json:"actor_id"`
	Action  Action    `json:"action"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`

	// Tamper detection
	PreviousHash string `json:"previous_hash,omitempty"` // SHA-256 of the preceding record, empty for the first
}

// AppendInput is the input for recording a decision.
type AppendInput struct {
	EntryID string
	ActorID string // Empty records SystemActor
	Action  Action
	Reason  string // Required for ActionRejected
}
