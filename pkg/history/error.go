package history

import "errors"

var (
	// ErrMissingUserID is returned when a Manager is built without a user.
	ErrMissingUserID = errors.New("history: missing user id")

	// ErrEmptySummary is returned when the model produced no summary text.
	ErrEmptySummary = errors.New("history: model returned an empty summary")

	// ErrInvalidRole is returned when a cached entry carries an unknown role.
	ErrInvalidRole = errors.New("history: invalid message role")
)
