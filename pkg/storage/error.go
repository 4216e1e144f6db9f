package storage

import "errors"

var (
	// ErrNotConfigured is returned when no durable backend has been configured.
	ErrNotConfigured = errors.New("storage: no durable backend configured")

	// ErrMissingUserID is returned when a row or query lacks a user id.
	ErrMissingUserID = errors.New("storage: user id is required")
)
