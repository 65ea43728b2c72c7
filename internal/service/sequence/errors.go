package sequence

import "errors"

// Sentinel errors for the sequence service layer.
var (
	ErrNotFound          = errors.New("sequence not found")
	ErrNoFields          = errors.New("update contains no thread fields")
	ErrSequenceLocked    = errors.New("sequence is deployed or completed; content is frozen")
	ErrInvalidTransition = errors.New("invalid status transition")
)
