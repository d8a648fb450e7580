package http

import "errors"

var (
	// ErrMultipleFiles is returned when an upload request carries more than one file.
	ErrMultipleFiles = errors.New("only one file may be uploaded per request")
	// ErrMissingFile is returned when an upload request has no file part.
	ErrMissingFile = errors.New("missing file field")
)
