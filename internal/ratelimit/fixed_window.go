package ratelimit

import (
	"encoding/json"
	"time"
)

type fixedWindowState struct {
	Count       int   `json:"count"`
	WindowStart int64 `json:"windowStart"` // epoch seconds, window-aligned
}

// fixedWindow counts admissions per window-aligned epoch bucket. The up-to-2x
// burst at a window edge is a known property of the algorithm, not a bug.
type fixedWindow struct {
	limit  int
	window int64 // seconds
}

func newFixedWindow(p Policy) fixedWindow {
	return fixedWindow{limit: p.Limit, window: int64(p.Window)}
}

func (fw fixedWindow) check(raw []byte, now time.Time, cost int) (outcome, []byte) {
	ts := now.Unix()

	st := fixedWindowState{WindowStart: fw.align(ts)}
	if raw != nil {
		if err := json.Unmarshal(raw, &st); err != nil {
			st = fixedWindowState{WindowStart: fw.align(ts)}
		}
	}
	if ts-st.WindowStart >= fw.window {
		st = fixedWindowState{WindowStart: fw.align(ts)}
	}

	resetAt := st.WindowStart + fw.window
	if st.Count+cost <= fw.limit {
		st.Count += cost
		return outcome{
			allowed:   true,
			remaining: fw.limit - st.Count,
			resetAt:   resetAt,
		}, marshalState(st)
	}

	remaining := fw.limit - st.Count
	if remaining < 0 {
		remaining = 0
	}
	retry := int(resetAt - ts)
	if retry < 1 {
		retry = 1
	}
	return outcome{
		allowed:    false,
		remaining:  remaining,
		resetAt:    resetAt,
		retryAfter: retry,
	}, marshalState(st)
}

func (fw fixedWindow) align(ts int64) int64 {
	return ts - ts%fw.window
}
