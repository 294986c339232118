package domain

import (
	"errors"
	"fmt"
)

// ErrForbidden reports that the caller's roles do not satisfy a route policy.
var ErrForbidden = errors.New("forbidden")

// ErrUnauthenticated reports missing or invalid credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrNotFound reports that a referenced entity does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ErrConflict reports a uniqueness or referential constraint violation.
type ErrConflict struct {
	Entity EntityType
	Field  string
	Value  string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s with %s %q conflicts with existing state", e.Entity, e.Field, e.Value)
}

// ErrInvalid reports a malformed request field.
type ErrInvalid struct {
	Field  string
	Reason string
}

func (e ErrInvalid) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFound is shorthand for constructing an ErrNotFound.
func NotFound(entity EntityType, id string) error {
	return ErrNotFound{Entity: entity, ID: id}
}

// Invalid is shorthand for constructing an ErrInvalid.
func Invalid(field, reason string) error {
	return ErrInvalid{Field: field, Reason: reason}
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
