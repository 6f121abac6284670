package model

import "time"

// Candidate is an unconfirmed news item awaiting an accept/reject decision.
// Its Title is its identity inside the candidate queue.
type Candidate struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	SourceReference string     `json:"source_url,omitempty"`
	SourceName      string     `json:"source,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// Valid reports whether the candidate carries a usable title and description.
func (c Candidate) Valid() bool {
	return c.Title != "" && c.Description != ""
}

// VerificationResult is the oracle's verdict for one candidate. IsVerified is
// the oracle's own judgment and is informational only.
type VerificationResult struct {
	ConfidenceScore float64  `json:"confidence_score"`
	IsVerified      bool     `json:"isVerified"`
	MatchingDetails []string `json:"matching_details"`
	Discrepancies   []string `json:"discrepancies"`
}

// SubmittedNews is the durable record of a candidate that cleared the gate.
type SubmittedNews struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	TrustScore  int       `json:"trust_score"`
	MintPrice   int       `json:"mint_price"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewNews holds the fields a caller supplies when persisting a record. The
// identifier and creation time are assigned by the store.
type NewNews struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	TrustScore  int    `json:"trust_score"`
	MintPrice   int    `json:"mint_price"`
}

// DecisionState tracks an accepted candidate through verification and
// submission.
type DecisionState string

const (
	DecisionUnscored   DecisionState = "unscored"
	DecisionVerifying  DecisionState = "verifying"
	DecisionScored     DecisionState = "scored"
	DecisionFailed     DecisionState = "failed"
	DecisionSubmitting DecisionState = "submitting"
	DecisionSubmitted  DecisionState = "submitted"
)

// Terminal reports whether no further action can change the state.
func (s DecisionState) Terminal() bool {
	return s == DecisionSubmitted
}

// InFlight reports whether a network call is outstanding for the candidate.
func (s DecisionState) InFlight() bool {
	return s == DecisionVerifying || s == DecisionSubmitting
}

// Review is a snapshot of an accepted candidate's progress.
type Review struct {
	Candidate Candidate           `json:"candidate"`
	State     DecisionState       `json:"state"`
	Percent   *int                `json:"percent,omitempty"`
	Admitted  bool                `json:"admitted"`
	Result    *VerificationResult `json:"result,omitempty"`
	NewsID    string              `json:"news_id,omitempty"`
	LastError string              `json:"last_error,omitempty"`
}
