package service

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by a service wraps at most one of
// them; handlers map them to status codes with errors.Is.
var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrGone          = errors.New("gone")
)

// SlugTakenError reports a slug collision together with a free alternative.
type SlugTakenError struct {
	Slug          string
	SuggestedSlug string
}

func (e *SlugTakenError) Error() string {
	return fmt.Sprintf("slug %q is already taken", e.Slug)
}

// Unwrap makes SlugTakenError match ErrInvalidInput.
func (e *SlugTakenError) Unwrap() error {
	return ErrInvalidInput
}

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidInput}, args...)...)
}
