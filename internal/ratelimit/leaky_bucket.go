package ratelimit

import (
	"encoding/json"
	"math"
	"time"
)

type leakyBucketState struct {
	Level    float64 `json:"level"`
	LastLeak float64 `json:"lastLeak"` // epoch seconds
}

// leakyBucket drains at a constant limit/window units per second, modeling
// request processing rather than token replenishment. Excess traffic is
// rejected, never queued.
type leakyBucket struct {
	capacity float64
	rate     float64 // units drained per second
}

func newLeakyBucket(p Policy) leakyBucket {
	return leakyBucket{
		capacity: float64(p.Burst),
		rate:     float64(p.Limit) / float64(p.Window),
	}
}

func (lb leakyBucket) check(raw []byte, now time.Time, cost int) (outcome, []byte) {
	ts := unixSeconds(now)

	st := leakyBucketState{Level: 0, LastLeak: ts}
	if raw != nil {
		if err := json.Unmarshal(raw, &st); err != nil {
			st = leakyBucketState{Level: 0, LastLeak: ts}
		}
	}

	level := st.Level - lb.rate*(ts-st.LastLeak)
	if level < 0 {
		level = 0
	}

	c := float64(cost)
	if level+c <= lb.capacity {
		level += c
		next := leakyBucketState{Level: level, LastLeak: ts}
		return outcome{
			allowed:   true,
			remaining: int(lb.capacity - level),
			resetAt:   int64(ts + level/lb.rate),
		}, marshalState(next)
	}

	next := leakyBucketState{Level: level, LastLeak: ts}
	retry := int(math.Ceil((level + c - lb.capacity) / lb.rate))
	if retry < 1 {
		retry = 1
	}
	return outcome{
		allowed:    false,
		remaining:  int(lb.capacity - level),
		resetAt:    int64(ts + level/lb.rate),
		retryAfter: retry,
	}, marshalState(next)
}
