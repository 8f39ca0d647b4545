package validate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Media validation errors
var (
	ErrInvalidMediaURI  = errors.New("invalid media URI")
	ErrDisallowedScheme = errors.New("URI scheme not allowed")
	ErrTooManyMedia     = errors.New("too many media items")
)

const (
	// MaxMediaItems is the maximum number of media URIs on one entry.
	MaxMediaItems = 20

	// MaxMediaURILength bounds a single media URI.
	MaxMediaURILength = 2048
)

// MediaURI validates a single media reference. Accepted forms are an
// absolute http(s) URL with a host, or an absolute path on this server such
// as "/uploads/photo.jpg".
func MediaURI(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmpty
	}
	if len(s) > MaxMediaURILength {
		return "", fmt.Errorf("%w: URI exceeds %d characters", ErrTooLong, MaxMediaURILength)
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMediaURI, err)
	}

	switch u.Scheme {
	case "http", "https":
		if u.Hostname() == "" {
			return "", fmt.Errorf("%w: missing hostname", ErrInvalidMediaURI)
		}
	case "":
		if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") {
			return "", fmt.Errorf("%w: relative paths are not allowed", ErrInvalidMediaURI)
		}
		for _, seg := range strings.Split(u.Path, "/") {
			if seg == ".." {
				return "", fmt.Errorf("%w: path traversal", ErrInvalidMediaURI)
			}
		}
	default:
		return "", fmt.Errorf("%w: got %q, allowed: [http https]", ErrDisallowedScheme, u.Scheme)
	}

	return s, nil
}

// Media validates an ordered list of media URIs. Order is preserved and a
// nil list yields an empty one.
func Media(uris []string) ([]string, error) {
	if len(uris) > MaxMediaItems {
		return nil, fmt.Errorf("%w: got %d, maximum is %d", ErrTooManyMedia, len(uris), MaxMediaItems)
	}
	out := make([]string, 0, len(uris))
	for i, raw := range uris {
		v, err := MediaURI(raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// MediaPrefix validates a prefix used when rewriting stored media URIs.
func MediaPrefix(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmpty
	}
	if _, err := MediaURI(s); err != nil {
		return "", err
	}
	return s, nil
}
