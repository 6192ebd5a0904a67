package ratelimit

import (
	"encoding/json"
	"time"
)

type slidingWindowBucket struct {
	Start int64 `json:"bucketStart"` // epoch seconds, aligned to the sub-bucket size
	Count int   `json:"count"`
}

// slidingWindow approximates a rolling count with precision sub-buckets
// spanning the window. More buckets means a tighter approximation at the
// price of O(precision) state per key; the other algorithms are O(1).
type slidingWindow struct {
	limit  int
	window int64 // seconds
	step   int64 // seconds per sub-bucket
}

func newSlidingWindow(p Policy) slidingWindow {
	step := int64(p.Window) / int64(p.Precision)
	if step < 1 {
		step = 1
	}
	return slidingWindow{limit: p.Limit, window: int64(p.Window), step: step}
}

func (sw slidingWindow) check(raw []byte, now time.Time, cost int) (outcome, []byte) {
	ts := now.Unix()

	var buckets []slidingWindowBucket
	if raw != nil {
		if err := json.Unmarshal(raw, &buckets); err != nil {
			buckets = nil
		}
	}

	// Rotate out buckets that fell off the back of the window.
	cutoff := ts - sw.window
	live := buckets[:0]
	sum := 0
	for _, b := range buckets {
		if b.Start <= cutoff {
			continue
		}
		live = append(live, b)
		sum += b.Count
	}

	resetAt := ts + sw.window
	if len(live) > 0 {
		resetAt = live[0].Start + sw.window
	}

	if sum+cost > sw.limit {
		remaining := sw.limit - sum
		if remaining < 0 {
			remaining = 0
		}
		retry := 1
		if len(live) > 0 {
			if r := int(live[0].Start + sw.window - ts); r > retry {
				retry = r
			}
		}
		return outcome{
			allowed:    false,
			remaining:  remaining,
			resetAt:    resetAt,
			retryAfter: retry,
		}, marshalState(live)
	}

	cur := ts - ts%sw.step
	if n := len(live); n > 0 && live[n-1].Start == cur {
		live[n-1].Count += cost
	} else {
		live = append(live, slidingWindowBucket{Start: cur, Count: cost})
	}
	sum += cost
	if len(live) == 1 {
		resetAt = live[0].Start + sw.window
	}

	return outcome{
		allowed:   true,
		remaining: sw.limit - sum,
		resetAt:   resetAt,
	}, marshalState(live)
}
