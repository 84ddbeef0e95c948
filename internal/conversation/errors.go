package conversation

import "errors"

var (
	// ErrInvalidInput marks a malformed request, e.g. an empty question.
	// Nothing is persisted and the call is not worth retrying as-is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrGenerationUnavailable marks a failure of the text-generation
	// collaborator. No turns are persisted; the caller may retry the
	// whole Ask.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrPersistenceFailed marks a store write failure after a
	// successful generation. The answer is still returned alongside
	// this error.
	ErrPersistenceFailed = errors.New("persistence failed")
)
