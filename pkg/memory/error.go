package memory

import "errors"

var (
	// ErrNotConfigured is returned when the service is built without a
	// vector store or embedder.
	ErrNotConfigured = errors.New("recall memory not configured")

	// ErrMissingIdentity is returned when a save or search has no user id.
	ErrMissingIdentity = errors.New("recall memory: missing user identity")

	// ErrEmptyContent is returned when a save carries no text.
	ErrEmptyContent = errors.New("recall memory: empty content")

	// ErrSearchFailed wraps embedding or vector store failures during search.
	ErrSearchFailed = errors.New("recall memory: search failed")

	// ErrQueueFull is returned when an async save could not be queued.
	ErrQueueFull = errors.New("recall memory: save queue is full")
)
