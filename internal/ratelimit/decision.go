package ratelimit

// Decision is the admission verdict for a single unit of work.
type Decision struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"resetAt"` // epoch seconds when capacity is back to full

	// RetryAfter is the suggested wait in seconds. Set only on a reject.
	RetryAfter int `json:"retryAfter,omitempty"`
}
