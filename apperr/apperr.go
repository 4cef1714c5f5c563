// Package apperr defines the error kinds returned by the issue core.
// Callers wrap them with context and match with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound is returned when an issue or response does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor lacks the required relationship
	// to the issue (reporter, assigned mentor, or admin).
	ErrForbidden = errors.New("forbidden")

	// ErrNotEligible is returned when the actor lacks mentor capability.
	ErrNotEligible = errors.New("not eligible")

	// ErrAlreadyAssigned is returned when claiming an issue that already has a mentor.
	ErrAlreadyAssigned = errors.New("already assigned")

	// ErrInvalidTransition is returned when the target status is not reachable
	// from the current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrEmptyContent is returned when a response body is blank.
	ErrEmptyContent = errors.New("empty content")

	// ErrNotASolutionResponse is returned when accepting a response that was
	// not posted by a mentor.
	ErrNotASolutionResponse = errors.New("not a solution response")

	// ErrAlreadyAccepted is returned when the issue already has an accepted response.
	ErrAlreadyAccepted = errors.New("already accepted")

	// ErrConflict is returned when optimistic-lock retries are exhausted.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput is returned when issue fields fail validation.
	ErrInvalidInput = errors.New("invalid input")
)
