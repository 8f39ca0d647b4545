package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/travelog/internal/auth"
)

// TokenValidator is the part of auth.JWTService the middleware needs.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Authenticate resolves a Bearer token into an auth.Actor stored in the
// request context. Requests without an Authorization header pass through
// anonymously; a present but invalid token is rejected with 401.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "Authorization header must use the Bearer scheme")
				return
			}

			claims, err := validator.ValidateAccessToken(strings.TrimSpace(token))
			if err != nil {
				msg := "Invalid access token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "Access token has expired"
				}
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", msg)
				return
			}

			ctx := auth.WithActor(r.Context(), claims.Actor())
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ActorFrom(r.Context()); !ok {
			writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireModerator admits auditors and admins only.
func RequireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.ActorFrom(r.Context())
		if !ok {
			writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		if !actor.IsModerator() {
			writeAuthError(w, r, http.StatusForbidden, "forbidden", "Moderator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="travelog"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
