package stream

import "errors"

// Error taxonomy for the streaming-access lifecycle. Handlers map these onto
// HTTP statuses; everything else is an internal failure.
var (
	// ErrNotFound covers both a token/identifier that does not exist and one
	// owned by another user. The two cases are deliberately indistinguishable
	// so token guessing cannot probe other users' play state.
	ErrNotFound = errors.New("stream access not found")

	// ErrAlreadyUsed means the one-shot guarantee of a token or play
	// identifier was already consumed.
	ErrAlreadyUsed = errors.New("stream access already used")

	// ErrExpired means the one-time access window has passed. Distinct from
	// ErrAlreadyUsed.
	ErrExpired = errors.New("stream access expired")
)
