package ratelimit

import (
	"encoding/json"
	"strconv"
	"time"
)

// outcome is an algorithm's raw verdict before policy metadata is attached.
type outcome struct {
	allowed    bool
	remaining  int
	resetAt    int64
	retryAfter int
}

// algorithm is one admission-counting variant. Instances are stateless values
// derived from a normalized policy; all mutable state lives in the raw store
// payload they are handed, so one instance is safe to share across calls.
//
// check accepts the stored state (nil for a first-seen caller) and returns the
// verdict plus the state to persist.
type algorithm interface {
	check(raw []byte, now time.Time, cost int) (outcome, []byte)
}

func newAlgorithm(p Policy) (algorithm, error) {
	switch p.Algorithm {
	case TokenBucket:
		return newTokenBucket(p), nil
	case FixedWindow:
		return newFixedWindow(p), nil
	case SlidingWindow:
		return newSlidingWindow(p), nil
	case LeakyBucket:
		return newLeakyBucket(p), nil
	}
	return nil, &ConfigError{"unknown algorithm " + strconv.Quote(string(p.Algorithm))}
}

func marshalState(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
