package storefront

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict is returned when a write collides with an existing record
	ErrConflict = errors.New("conflict")
	// ErrPathRejected is returned when a requested path escapes its root or is malformed
	ErrPathRejected = errors.New("path rejected")
	// ErrUploadRejected is returned when an upload violates type, name or size rules
	ErrUploadRejected = errors.New("upload rejected")
	// ErrPromotionFailed is returned when a staged file could not be moved to permanent storage
	ErrPromotionFailed = errors.New("promotion failed")
)
