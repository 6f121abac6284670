package pipeline

// Counters tracks session activity for monitoring.
type Counters struct {
	Refreshes       int `json:"refreshes"`
	Fetched         int `json:"fetched"`
	FetchFailures   int `json:"fetch_failures"`
	Accepted        int `json:"accepted"`
	Proposed        int `json:"proposed"`
	Rejected        int `json:"rejected"`
	Verified        int `json:"verified"`
	VerifyFailures  int `json:"verify_failures"`
	BelowThreshold  int `json:"below_threshold"`
	Submitted       int `json:"submitted"`
	PersistFailures int `json:"persist_failures"`
	Stale           int `json:"stale"`
	Pending         int `json:"pending"`
	InReview        int `json:"in_review"`
}
