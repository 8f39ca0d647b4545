// Package validate provides input validation for diary text fields and
// media references.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Text validation errors
var (
	ErrEmpty             = errors.New("is required")
	ErrTooLong           = errors.New("is too long")
	ErrInvalidCharacters = errors.New("contains invalid characters")
)

// Field length limits, in characters.
const (
	MaxTitleLength       = 200
	MaxBodyLength        = 20000
	MaxLocationLength    = 200
	MaxDisplayNameLength = 100
	MaxReasonLength      = 1000
	MaxKeywordLength     = 100
)

// TextConstraints defines validation constraints for a text field.
type TextConstraints struct {
	MaxLength  int  // Maximum length in runes (0 = no maximum)
	AllowEmpty bool // Whether an empty value is accepted
	Multiline  bool // Whether newlines and tabs are accepted
}

// Text trims s and validates it against c. The trimmed value is returned.
func Text(s string, c TextConstraints) (string, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		if c.AllowEmpty {
			return "", nil
		}
		return "", ErrEmpty
	}

	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}

	if n := utf8.RuneCountInString(s); c.MaxLength > 0 && n > c.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrTooLong, n, c.MaxLength)
	}

	for _, r := range s {
		if !unicode.IsControl(r) {
			continue
		}
		if c.Multiline && (r == '\n' || r == '\r' || r == '\t') {
			continue
		}
		return "", fmt.Errorf("%w: control character %U", ErrInvalidCharacters, r)
	}

	return s, nil
}

// Title validates a diary title: required, single line.
func Title(s string) (string, error) {
	return Text(s, TextConstraints{MaxLength: MaxTitleLength})
}

// Body validates a diary body: required, may span lines.
func Body(s string) (string, error) {
	return Text(s, TextConstraints{MaxLength: MaxBodyLength, Multiline: true})
}

// Location validates the optional free-text location.
func Location(s string) (string, error) {
	return Text(s, TextConstraints{MaxLength: MaxLocationLength, AllowEmpty: true})
}

// DisplayName validates the optional author display name snapshot.
func DisplayName(s string) (string, error) {
	return Text(s, TextConstraints{MaxLength: MaxDisplayNameLength, AllowEmpty: true})
}

// Reason validates a moderation reason. Whitespace-only counts as empty.
func Reason(s string) (string, error) {
	return Text(s, TextConstraints{MaxLength: MaxReasonLength, AllowEmpty: true, Multiline: true})
}

// Keyword validates a listing search keyword.
func Keyword(s string) (string, error) {
	return Text(s, TextConstraints{MaxLength: MaxKeywordLength, AllowEmpty: true})
}
