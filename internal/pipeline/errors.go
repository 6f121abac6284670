package pipeline

import "github.com/rotisserie/eris"

var (
	// ErrNotVerified is returned when submitting a candidate with no score.
	ErrNotVerified = eris.New("verify first")
	// ErrBelowThreshold is returned when a score does not clear the gate.
	ErrBelowThreshold = eris.New("trust score below threshold")
	// ErrUnknownCandidate is returned for a title that has not been accepted.
	ErrUnknownCandidate = eris.New("unknown candidate")
	// ErrInFlight is returned while a call for the candidate is outstanding.
	ErrInFlight = eris.New("a call for this candidate is already in flight")
	// ErrStale marks a result that arrived after the candidate was rejected
	// or superseded. The result was discarded.
	ErrStale = eris.New("stale result discarded")
	// ErrInvalidCandidate is returned for a manual claim without a title or
	// description.
	ErrInvalidCandidate = eris.New("title and description are required")
	// ErrDuplicateTitle is returned when a manual claim reuses a title that
	// is pending or accepted.
	ErrDuplicateTitle = eris.New("a candidate with this title already exists")
)
