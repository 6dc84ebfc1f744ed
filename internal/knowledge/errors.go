package knowledge

import "errors"

var (
	// ErrPersistence indicates the collection could not be read or written.
	ErrPersistence = errors.New("knowledge persistence failed")

	// ErrFormat indicates a collection or backup file has no recognizable
	// document collection.
	ErrFormat = errors.New("unrecognized knowledge format")

	// ErrInvalidDocument indicates a document is missing a title or content.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrNotFound indicates no document has the requested ID.
	ErrNotFound = errors.New("document not found")
)
