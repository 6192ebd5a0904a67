package ratelimit

import (
	"encoding/json"
	"math"
	"time"
)

type tokenBucketState struct {
	Tokens     float64 `json:"tokens"`
	LastRefill float64 `json:"lastRefill"` // epoch seconds
}

// tokenBucket refills capacity continuously at limit/window tokens per second.
type tokenBucket struct {
	capacity float64
	rate     float64 // tokens per second
}

func newTokenBucket(p Policy) tokenBucket {
	return tokenBucket{
		capacity: float64(p.Burst),
		rate:     float64(p.Limit) / float64(p.Window),
	}
}

func (tb tokenBucket) check(raw []byte, now time.Time, cost int) (outcome, []byte) {
	ts := unixSeconds(now)

	st := tokenBucketState{Tokens: tb.capacity, LastRefill: ts}
	if raw != nil {
		if err := json.Unmarshal(raw, &st); err != nil {
			st = tokenBucketState{Tokens: tb.capacity, LastRefill: ts}
		}
	}

	tokens := st.Tokens + tb.rate*(ts-st.LastRefill)
	if tokens > tb.capacity {
		tokens = tb.capacity
	}
	if tokens < 0 {
		tokens = 0
	}

	c := float64(cost)
	if tokens >= c {
		tokens -= c
		next := tokenBucketState{Tokens: tokens, LastRefill: ts}
		return outcome{
			allowed:   true,
			remaining: int(tokens),
			resetAt:   int64(ts + (tb.capacity-tokens)/tb.rate),
		}, marshalState(next)
	}

	// A reject keeps the old refill timestamp; advancing it here would
	// steal the elapsed refill credit from the next check.
	st.Tokens = tokens
	return outcome{
		allowed:    false,
		remaining:  int(tokens),
		resetAt:    int64(ts + (tb.capacity-tokens)/tb.rate),
		retryAfter: int(math.Ceil((c-tokens)/tb.rate)) + 1,
	}, marshalState(st)
}
