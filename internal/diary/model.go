// Package diary provides the diary entry model and a repository that owns
// entry identity, ownership and status transitions on top of a persisted
// collection.
package diary

import (
	"slices"
	"time"

	"github.com/onnwee/travelog/internal/apperrors"
)

// Status is the moderation state of an entry.
type Status string

// Entry statuses. Every entry starts as pending; an author edit always
// returns it to pending.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// AllowedStatuses is the exhaustive list of entry statuses.
var AllowedStatuses = []Status{StatusPending, StatusApproved, StatusRejected}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(AllowedStatuses, s)
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", apperrors.NewValidationError("status", "must be one of pending, approved, rejected")
	}
	return s, nil
}

// Entry is a submitted diary record.
//
// AuthorDisplayName is a snapshot taken at creation and is not refreshed
// when the author's profile changes.
type Entry struct {
	ID                string    `json:"id"`
	AuthorID          string    `json:"author_id"`
	AuthorDisplayName string    `json:"author_display_name,omitempty"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	Location          string    `json:"location,omitempty"`
	Media             []string  `json:"media"`
	Status            Status    `json:"status"`
	RejectionReason   string    `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsOwnedBy reports whether actorID authored the entry.
func (e *Entry) IsOwnedBy(actorID string) bool {
	return actorID != "" && e.AuthorID == actorID
}

// CreateInput holds the author-supplied fields of a new entry.
type CreateInput struct {
	AuthorID          string
	AuthorDisplayName string
	Title             string
	Body              string
	Location          string
	Media             []string
}

// Patch lists the fields an author may change. A nil field keeps the stored
// value; a non-nil Media replaces the whole list.
type Patch struct {
	Title    *string
	Body     *string
	Location *string
	Media    *[]string
}

// Page is one window of a sorted listing.
type Page struct {
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Items []Entry `json:"items"`
}
