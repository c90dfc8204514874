package survey

import "errors"

var (
	// ErrSessionNotFound is returned when an operation requires an existing
	// session and the user has not started the survey.
	ErrSessionNotFound = errors.New("survey session not found")

	// ErrInvalidTransition is returned for stale or out-of-order answer
	// submissions and for answer values outside the allowed domain. The
	// session is left unchanged.
	ErrInvalidTransition = errors.New("invalid survey transition")

	// ErrNotCompleted is returned when results are requested for a survey
	// that has not been completed yet.
	ErrNotCompleted = errors.New("survey not completed")
)
