package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestMediaURI(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"https url", "https://cdn.example.com/photos/1.jpg", nil},
		{"http url with port", "http://localhost:3000/uploads/a.mp4", nil},
		{"absolute upload path", "/uploads/2024/a.jpg", nil},
		{"empty", "", ErrEmpty},
		{"relative path", "uploads/a.jpg", ErrInvalidMediaURI},
		{"protocol relative", "//evil.example/a.jpg", ErrInvalidMediaURI},
		{"traversal", "/uploads/../etc/passwd", ErrInvalidMediaURI},
		{"missing host", "https:///a.jpg", ErrInvalidMediaURI},
		{"javascript scheme", "javascript:alert(1)", ErrDisallowedScheme},
		{"file scheme", "file:///etc/passwd", ErrDisallowedScheme},
		{"too long", "https://x.example/" + strings.Repeat("a", MaxMediaURILength), ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MediaURI(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("MediaURI(%q) unexpected error = %v", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("MediaURI(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestMedia(t *testing.T) {
	got, err := Media(nil)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("Media(nil) = %v, %v; want empty, nil", got, err)
	}

	in := []string{"/uploads/b.jpg", " https://cdn.example.com/a.jpg "}
	got, err = Media(in)
	if err != nil {
		t.Fatalf("Media() error = %v", err)
	}
	if got[0] != "/uploads/b.jpg" || got[1] != "https://cdn.example.com/a.jpg" {
		t.Errorf("Media() = %v, want order preserved and trimmed", got)
	}

	tooMany := make([]string, MaxMediaItems+1)
	for i := range tooMany {
		tooMany[i] = "/uploads/x.jpg"
	}
	if _, err := Media(tooMany); !errors.Is(err, ErrTooManyMedia) {
		t.Errorf("Media(too many) error = %v, want ErrTooManyMedia", err)
	}

	if _, err := Media([]string{"/ok.jpg", "ftp://x/y"}); !errors.Is(err, ErrDisallowedScheme) {
		t.Errorf("Media(bad item) error = %v, want ErrDisallowedScheme", err)
	}
}
