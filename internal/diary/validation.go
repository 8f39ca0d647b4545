package diary

import (
	"github.com/onnwee/travelog/internal/apperrors"
	"github.com/onnwee/travelog/internal/validate"
)

// validateCreate checks every field of in and returns the normalised entry
// fields, or a ValidationError listing each invalid field.
func validateCreate(in CreateInput) (Entry, error) {
	var errs []apperrors.FieldError
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, apperrors.FieldError{Field: field, Message: err.Error()})
		}
	}

	e := Entry{AuthorID: in.AuthorID}
	if e.AuthorID == "" {
		check("author_id", validate.ErrEmpty)
	}

	var err error
	e.AuthorDisplayName, err = validate.DisplayName(in.AuthorDisplayName)
	check("author_display_name", err)
	e.Title, err = validate.Title(in.Title)
	check("title", err)
	e.Body, err = validate.Body(in.Body)
	check("body", err)
	e.Location, err = validate.Location(in.Location)
	check("location", err)
	e.Media, err = validate.Media(in.Media)
	check("media", err)

	if len(errs) > 0 {
		return Entry{}, apperrors.NewValidationErrors(errs)
	}
	return e, nil
}

// validatePatch normalises the fields present in p. A present title or body
// must not be empty.
func validatePatch(p Patch) (Patch, error) {
	var errs []apperrors.FieldError
	var out Patch

	if p.Title != nil {
		v, err := validate.Title(*p.Title)
		if err != nil {
			errs = append(errs, apperrors.FieldError{Field: "title", Message: err.Error()})
		}
		out.Title = &v
	}
	if p.Body != nil {
		v, err := validate.Body(*p.Body)
		if err != nil {
			errs = append(errs, apperrors.FieldError{Field: "body", Message: err.Error()})
		}
		out.Body = &v
	}
	if p.Location != nil {
		v, err := validate.Location(*p.Location)
		if err != nil {
			errs = append(errs, apperrors.FieldError{Field: "location", Message: err.Error()})
		}
		out.Location = &v
	}
	if p.Media != nil {
		v, err := validate.Media(*p.Media)
		if err != nil {
			errs = append(errs, apperrors.FieldError{Field: "media", Message: err.Error()})
		}
		out.Media = &v
	}

	if len(errs) > 0 {
		return out, apperrors.NewValidationErrors(errs)
	}
	return out, nil
}
