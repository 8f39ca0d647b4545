package diary

import (
	"sort"
	"strings"

	"github.com/onnwee/travelog/internal/apperrors"
)

// sortNewestFirst orders entries by CreatedAt descending, then ID
// descending. IDs are creation-ordered so the tie-break keeps the most
// recently created entry first.
func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// checkPaging rejects a negative page or a non-positive limit.
func checkPaging(page, limit int) error {
	var errs []apperrors.FieldError
	if page < 0 {
		errs = append(errs, apperrors.FieldError{Field: "page", Message: "must be zero or greater"})
	}
	if limit <= 0 {
		errs = append(errs, apperrors.FieldError{Field: "limit", Message: "must be greater than zero"})
	}
	if len(errs) > 0 {
		return apperrors.NewValidationErrors(errs)
	}
	return nil
}

// paginate sorts the filtered entries and cuts the zero-based window
// [page*limit, (page+1)*limit), clamped to what exists.
func paginate(entries []Entry, page, limit int) Page {
	sortNewestFirst(entries)

	total := len(entries)
	start := page * limit
	if start > total || start < 0 {
		start = total
	}
	end := start + limit
	if end > total || end < start {
		end = total
	}

	items := make([]Entry, end-start)
	copy(items, entries[start:end])

	return Page{Total: total, Page: page, Limit: limit, Items: items}
}

func filter(entries []Entry, keep func(*Entry) bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for i := range entries {
		if keep(&entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out
}

// matchesKeyword reports whether title or body contains keyword, ignoring
// case. keyword must already be lower-cased.
func matchesKeyword(e *Entry, keyword string) bool {
	return strings.Contains(strings.ToLower(e.Title), keyword) ||
		strings.Contains(strings.ToLower(e.Body), keyword)
}
