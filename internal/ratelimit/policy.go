package ratelimit

import (
	"context"
	"strconv"
)

// Algorithm selects one of the four admission-counting variants.
type Algorithm string

const (
	TokenBucket   Algorithm = "token_bucket"
	FixedWindow   Algorithm = "fixed_window"
	SlidingWindow Algorithm = "sliding_window"
	LeakyBucket   Algorithm = "leaky_bucket"
)

// KeyStrategy selects how the caller identity used as the storage key is
// derived from a request.
type KeyStrategy string

const (
	KeyIP        KeyStrategy = "ip"
	KeyUser      KeyStrategy = "user"
	KeyAPIKey    KeyStrategy = "api_key"
	KeyComposite KeyStrategy = "composite"
	KeyCustom    KeyStrategy = "custom"
)

// Policy is the immutable configuration for one admission counter. Name
// doubles as the counter namespace in storage, so two limiters sharing a
// store and a policy name share counters.
type Policy struct {
	Name        string
	Limit       int // units admitted per Window
	Window      int // seconds
	Burst       int // bucket/ceiling capacity, defaults to Limit
	Cost        int // units consumed per admitted request, defaults to 1
	Algorithm   Algorithm
	KeyStrategy KeyStrategy

	// KeyExtractor overrides the built-in strategies when set. Returning ""
	// marks the request unidentifiable, which admits it unconditionally.
	KeyExtractor func(*Request) string

	// Exemptions lists path or IP literals that bypass admission entirely.
	Exemptions []string

	// BlockDuration is an informational cooldown in seconds after a reject.
	// It is surfaced to callers and never enforced by the algorithms.
	BlockDuration int

	// Precision is the sliding-window sub-bucket count, defaults to 10.
	// Ignored by the other algorithms.
	Precision int
}

// Resolver produces the policy for the current request. It may do its own
// lookups (plan tables, databases); the engine waits for it before anything
// else and treats its error as fatal for the check.
type Resolver func(ctx context.Context, req *Request) (Policy, error)

const defaultPrecision = 10

// normalizePolicy fills documented defaults and validates the result.
func normalizePolicy(p Policy) (Policy, error) {
	if p.Algorithm == "" {
		p.Algorithm = TokenBucket
	}
	if p.KeyStrategy == "" {
		p.KeyStrategy = KeyIP
	}
	if p.Burst == 0 {
		p.Burst = p.Limit
	}
	if p.Cost == 0 {
		p.Cost = 1
	}
	if p.Precision <= 0 {
		p.Precision = defaultPrecision
	}
	if p.Limit <= 0 {
		return Policy{}, &ConfigError{"policy " + strconv.Quote(p.Name) + ": limit must be > 0"}
	}
	if p.Window <= 0 {
		return Policy{}, &ConfigError{"policy " + strconv.Quote(p.Name) + ": window must be > 0"}
	}
	if p.Burst < p.Limit {
		return Policy{}, &ConfigError{"policy " + strconv.Quote(p.Name) + ": burst must be >= limit"}
	}
	if p.Cost < 0 {
		return Policy{}, &ConfigError{"policy " + strconv.Quote(p.Name) + ": cost must be >= 1"}
	}
	return p, nil
}
