package apperrors

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
	// ErrVersionConflict is returned when a compare-and-swap write on a
	// knowledge base loses against a concurrent writer.
	ErrVersionConflict = errors.New("knowledge base version conflict")
	ErrNotMember       = errors.New("user is not a member of the organization")
)
