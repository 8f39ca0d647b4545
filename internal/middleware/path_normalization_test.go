package middleware

import (
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "root path", path: "/", expected: "/"},
		{name: "public list", path: "/diaries", expected: "/diaries"},
		{name: "own entries", path: "/diaries/mine", expected: "/diaries/mine"},
		{name: "single entry", path: "/diaries/0192b3c4-7d2e-7c4a-9f00-1234567890ab", expected: "/diaries/{id}"},
		{name: "moderation list", path: "/admin/diaries", expected: "/admin/diaries"},
		{name: "moderation entry", path: "/admin/diaries/abc", expected: "/admin/diaries/{id}"},
		{name: "status change", path: "/admin/diaries/abc/status", expected: "/admin/diaries/{id}/status"},
		{name: "approve alias", path: "/admin/diaries/abc/approve", expected: "/admin/diaries/{id}/approve"},
		{name: "reject alias", path: "/admin/diaries/abc/reject", expected: "/admin/diaries/{id}/reject"},
		{name: "audit logs", path: "/admin/audit-logs", expected: "/admin/audit-logs"},
		{name: "audit export", path: "/admin/audit-logs/export", expected: "/admin/audit-logs/export"},
		{name: "health endpoint", path: "/health", expected: "/health"},
		{name: "ready endpoint", path: "/ready", expected: "/ready"},
		{name: "metrics endpoint", path: "/metrics", expected: "/metrics"},
		{name: "unknown action", path: "/admin/diaries/abc/publish", expected: "other"},
		{name: "deep diary path", path: "/diaries/abc/extra", expected: "other"},
		{name: "unknown path", path: "/wp-login.php", expected: "other"},
		{name: "empty id", path: "/diaries/", expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestNormalizePath_CardinalityControl(t *testing.T) {
	seen := make(map[string]bool)
	for _, id := range []string{"a", "b", "c", "0192b3c4", "ffffffff"} {
		seen[normalizePath("/diaries/"+id)] = true
		seen[normalizePath("/admin/diaries/"+id+"/status")] = true
	}
	if len(seen) != 2 {
		t.Errorf("expected 2 distinct labels for dynamic routes, got %d: %v", len(seen), seen)
	}
}
