package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/travelog/internal/auth"
	"github.com/onnwee/travelog/internal/diary"
)

// Paging defaults for list endpoints. Pages are zero-based.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// maxBodyBytes bounds request bodies on write endpoints.
const maxBodyBytes = 1 << 20

// CreateDiaryRequest represents the request body for creating a diary entry.
type CreateDiaryRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Location string   `json:"location,omitempty"`
	Media    []string `json:"media,omitempty"`
}

// UpdateDiaryRequest represents the request body for editing a diary entry.
// Omitted fields keep their stored value.
type UpdateDiaryRequest struct {
	Title    *string   `json:"title,omitempty"`
	Body     *string   `json:"body,omitempty"`
	Location *string   `json:"location,omitempty"`
	Media    *[]string `json:"media,omitempty"`
}

// DiaryHandlers holds dependencies for diary HTTP handlers.
type DiaryHandlers struct {
	repo *diary.Repository
}

// NewDiaryHandlers creates a new DiaryHandlers instance.
func NewDiaryHandlers(repo *diary.Repository) *DiaryHandlers {
	return &DiaryHandlers{repo: repo}
}

// parsePaging reads page and limit from the query string. A missing limit
// defaults to DefaultPageLimit and larger values are capped at MaxPageLimit.
func parsePaging(r *http.Request) (page, limit int, err error) {
	q := r.URL.Query()
	page, limit = 0, DefaultPageLimit
	if raw := q.Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			return 0, 0, errors.New("page must be an integer")
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, errors.New("limit must be an integer")
		}
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit, nil
}

// decodeBody decodes a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ListPublic handles GET /diaries.
func (h *DiaryHandlers) ListPublic(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePaging(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	result, err := h.repo.ListPublic(r.Context(), page, limit, r.URL.Query().Get("keyword"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ListMine handles GET /diaries/mine.
func (h *DiaryHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	page, limit, err := parsePaging(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	result, err := h.repo.ListByAuthor(r.Context(), actor.ID, page, limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// Get handles GET /diaries/{id}. Entries that are not approved are only
// visible to their author and to moderators; everyone else gets 404.
func (h *DiaryHandlers) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	if entry.Status != diary.StatusApproved {
		actor, _ := auth.ActorFrom(r.Context())
		if !entry.IsOwnedBy(actor.ID) && !actor.IsModerator() {
			WriteAppError(w, r, diary.ErrEntryNotFound)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, entry)
}

// Create handles POST /diaries.
func (h *DiaryHandlers) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req CreateDiaryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}

	entry, err := h.repo.Create(r.Context(), diary.CreateInput{
		AuthorID:          actor.ID,
		AuthorDisplayName: actor.DisplayName,
		Title:             req.Title,
		Body:              req.Body,
		Location:          req.Location,
		Media:             req.Media,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "diary entry created", "entry_id", entry.ID, "author_id", actor.ID)
	w.Header().Set("Location", "/diaries/"+entry.ID)
	writeJSON(w, r, http.StatusCreated, entry)
}

// Update handles PUT /diaries/{id}. Only the author may edit; any edit
// sends the entry back to moderation.
func (h *DiaryHandlers) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req UpdateDiaryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}

	entry, err := h.repo.Update(r.Context(), r.PathValue("id"), actor.ID, diary.Patch{
		Title:    req.Title,
		Body:     req.Body,
		Location: req.Location,
		Media:    req.Media,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entry)
}

// Delete handles DELETE /diaries/{id}. Authors delete their own entries;
// admins may delete any entry through this route as well.
func (h *DiaryHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	id := r.PathValue("id")

	if err := h.repo.Delete(r.Context(), id, actor.ID, actor.IsAdmin()); err != nil {
		WriteAppError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "diary entry deleted", "entry_id", id, "actor_id", actor.ID)
	w.WriteHeader(http.StatusNoContent)
}
