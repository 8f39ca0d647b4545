package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/travelog/internal/auth"
)

const authTestSecret = "middleware-test-secret-0123456789"

func tokenFor(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	token, err := auth.NewJWTService(authTestSecret).GenerateAccessToken(userID, role, "")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return token
}

func TestAuthenticate(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	refresh, err := svc.GenerateRefreshToken("user-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  string
	}{
		{name: "anonymous", header: "", wantStatus: http.StatusOK},
		{name: "valid bearer", header: "Bearer " + tokenFor(t, "user-1", auth.RoleUser), wantStatus: http.StatusOK, wantActor: "user-1"},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + refresh, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotActor string
			handler := Authenticate(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if a, ok := auth.ActorFrom(r.Context()); ok {
					gotActor = a.ID
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/diaries/mine", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if gotActor != tt.wantActor {
				t.Errorf("actor = %q, want %q", gotActor, tt.wantActor)
			}
			if tt.wantStatus == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate header")
			}
		})
	}
}

func TestRequireModerator(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	tests := []struct {
		name       string
		role       auth.Role
		anonymous  bool
		wantStatus int
	}{
		{name: "anonymous", anonymous: true, wantStatus: http.StatusUnauthorized},
		{name: "user", role: auth.RoleUser, wantStatus: http.StatusForbidden},
		{name: "auditor", role: auth.RoleAuditor, wantStatus: http.StatusOK},
		{name: "admin", role: auth.RoleAdmin, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Authenticate(svc)(RequireModerator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))
			req := httptest.NewRequest(http.MethodGet, "/admin/diaries", nil)
			if !tt.anonymous {
				req.Header.Set("Authorization", "Bearer "+tokenFor(t, "mod-1", tt.role))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/diaries", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/diaries", nil)
	req = req.WithContext(auth.WithActor(req.Context(), auth.Actor{ID: "u", Role: auth.RoleUser}))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rr.Code)
	}
}

type validatorFunc func(token string) (*auth.Claims, error)

func (f validatorFunc) ValidateAccessToken(token string) (*auth.Claims, error) { return f(token) }

func TestAuthenticate_WrappedExpiredToken(t *testing.T) {
	validator := validatorFunc(func(string) (*auth.Claims, error) {
		return nil, fmt.Errorf("access token: %w", auth.ErrExpiredToken)
	})
	handler := Authenticate(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for an expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/diaries/mine", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Message != "Access token has expired" {
		t.Errorf("message = %q, want %q", body.Error.Message, "Access token has expired")
	}
}
