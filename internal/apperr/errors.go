// Package apperr defines the sentinel errors shared across the domain layers.
package apperr

import "errors"

var (
	// ErrNotFound is returned when an operation targets a project id that
	// does not exist in the collection.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned by create when the id is already taken.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrNotInitialized is returned when a store mutator is called before
	// a successful Read on the same session.
	ErrNotInitialized = errors.New("store not initialized")
	// ErrParse is returned when the backing file cannot be parsed.
	ErrParse = errors.New("parse error")
	// ErrUnsupportedType is returned for image MIME types outside the allow list.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrTooLarge is returned for images exceeding the size cap.
	ErrTooLarge = errors.New("image too large")
)
