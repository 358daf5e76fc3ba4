package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every lookup failure.
	ErrNotFound = errors.New("not found")
	// ErrRoomNotFound is returned for an unknown room code or id.
	ErrRoomNotFound = fmt.Errorf("room %w", ErrNotFound)
	// ErrPlayerNotFound is returned for an unknown player id.
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)
	// ErrValidation marks malformed or missing input. Wrap it with the field detail.
	ErrValidation = errors.New("validation failed")
	// ErrGradingUnavailable is returned when the room has no gradable question.
	ErrGradingUnavailable = errors.New("no question with correct answer set")
	// ErrRoomCodeTaken indicates a room code collided at insert time.
	ErrRoomCodeTaken = errors.New("room code already taken")
)

// Invalid builds a validation error for a single field.
func Invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}
