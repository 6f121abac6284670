package model

import "github.com/rotisserie/eris"

// Stage failures. Each is recoverable: the user may retry the action that
// produced it.
var (
	// ErrSourceUnavailable means the feed provider could not be reached or
	// returned an unusable payload.
	ErrSourceUnavailable = eris.New("source unavailable")

	// ErrVerificationFailure means the oracle was unreachable or returned an
	// unusable payload. No score exists.
	ErrVerificationFailure = eris.New("verification failure")

	// ErrPersistence means the store rejected or failed the write. No record
	// exists.
	ErrPersistence = eris.New("persistence error")
)
