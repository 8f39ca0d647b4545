package api

import (
	"net/http"

	"github.com/onnwee/travelog/internal/middleware"
)

// RouterConfig wires handlers and per-route middleware into a mux.
type RouterConfig struct {
	Diaries    *DiaryHandlers
	Moderation *ModerationHandlers
	Health     *HealthHandlers

	// Tokens validates Bearer tokens. Required.
	Tokens middleware.TokenValidator

	// RateLimitStore limits write endpoints per actor. Nil disables limiting.
	RateLimitStore middleware.RateLimitStore
	WriteLimit     middleware.RateLimitConfig
	Metrics        *middleware.Metrics

	// MetricsHandler serves GET /metrics. Nil leaves the route unregistered.
	MetricsHandler http.Handler

	Version string
}

// NewRouter builds the HTTP routing table. Authentication is optional at the
// mux level; routes that need an actor add RequireAuth or RequireModerator.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	writes := func(endpoint string, h http.HandlerFunc) http.Handler {
		if cfg.RateLimitStore == nil {
			return h
		}
		return middleware.RateLimiter(cfg.RateLimitStore, cfg.WriteLimit, middleware.ActorKeyFunc, endpoint, cfg.Metrics)(h)
	}
	authed := func(h http.Handler) http.Handler { return middleware.RequireAuth(h) }
	moderator := func(h http.Handler) http.Handler { return middleware.RequireModerator(h) }

	// Diary entries
	mux.HandleFunc("GET /diaries", cfg.Diaries.ListPublic)
	mux.Handle("GET /diaries/mine", authed(http.HandlerFunc(cfg.Diaries.ListMine)))
	mux.HandleFunc("GET /diaries/{id}", cfg.Diaries.Get)
	mux.Handle("POST /diaries", authed(writes("diaries_create", cfg.Diaries.Create)))
	mux.Handle("PUT /diaries/{id}", authed(writes("diaries_update", cfg.Diaries.Update)))
	mux.Handle("DELETE /diaries/{id}", authed(writes("diaries_delete", cfg.Diaries.Delete)))

	// Moderation
	mux.Handle("GET /admin/diaries", moderator(http.HandlerFunc(cfg.Moderation.List)))
	mux.Handle("PUT /admin/diaries/{id}/status", moderator(writes("moderation", cfg.Moderation.SetStatus)))
	mux.Handle("PUT /admin/diaries/{id}/approve", moderator(writes("moderation", cfg.Moderation.Approve)))
	mux.Handle("PUT /admin/diaries/{id}/reject", moderator(writes("moderation", cfg.Moderation.Reject)))
	mux.Handle("DELETE /admin/diaries/{id}", moderator(writes("moderation", cfg.Moderation.Delete)))
	mux.Handle("GET /admin/audit-logs", moderator(http.HandlerFunc(cfg.Moderation.AuditLogs)))
	mux.Handle("GET /admin/audit-logs/export", moderator(http.HandlerFunc(cfg.Moderation.ExportAuditLogs)))
	mux.Handle("GET /admin/audit-logs/verify", moderator(http.HandlerFunc(cfg.Moderation.VerifyAuditLog)))

	// Probes
	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" || r.Method != http.MethodGet {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"service": "travelog-api", "version": cfg.Version})
	})

	return middleware.Authenticate(cfg.Tokens)(mux)
}
