package editor

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks corner arrays of the wrong length.
	ErrValidation = errors.New("corner validation failed")
	// ErrProtocolViolation marks input streams that break the pointer
	// lifecycle, such as a second down for a live pointer id.
	ErrProtocolViolation = errors.New("pointer protocol violation")
)

// ValidationError reports a corner array whose length is not four.
type ValidationError struct {
	Op  string
	Got int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: expected %d corners, got %d", e.Op, cornerCount, e.Got)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ProtocolViolation reports a pointer-down for an id that is already live.
type ProtocolViolation struct {
	ID PointerID
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("pointer down with already registered id %d", e.ID)
}

func (e *ProtocolViolation) Unwrap() error { return ErrProtocolViolation }
