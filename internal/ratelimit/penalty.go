package ratelimit

import (
	"context"
	"encoding/json"
	"time"
)

// Penalty is a decaying abuse ledger for one caller. AbuseScore sheds
// decayRate points per hour since the last violation, applied lazily on
// every read rather than by a timer.
type Penalty struct {
	AbuseScore    float64 `json:"abuseScore"`
	PenaltyUntil  int64   `json:"penaltyUntil,omitempty"` // epoch seconds, 0 when no penalty
	Violations    int     `json:"violations"`
	LastViolation int64   `json:"lastViolation,omitempty"` // epoch seconds, 0 when never
}

// PenaltyManager scores abusive callers and opens a temporary penalty window
// once the score crosses the threshold.
type PenaltyManager struct {
	store      Store
	ns         string
	threshold  float64
	duration   time.Duration
	decayRate  float64 // score shed per hour since the last violation
	multiplier float64
	hooks      Hooks
	now        func() time.Time
}

// PenaltyOption configures a PenaltyManager.
type PenaltyOption func(*PenaltyManager)

// WithPenaltyThreshold sets the abuse score that opens a penalty window.
func WithPenaltyThreshold(v float64) PenaltyOption {
	return func(m *PenaltyManager) { m.threshold = v }
}

// WithPenaltyDuration sets how long a penalty window stays open.
func WithPenaltyDuration(d time.Duration) PenaltyOption {
	return func(m *PenaltyManager) { m.duration = d }
}

// WithPenaltyDecayRate sets the score shed per hour since the last violation.
func WithPenaltyDecayRate(v float64) PenaltyOption {
	return func(m *PenaltyManager) { m.decayRate = v }
}

// WithPenaltyMultiplier sets the limit scale-down reported while a penalty
// is active. It is surfaced to callers, never applied by the engine.
func WithPenaltyMultiplier(v float64) PenaltyOption {
	return func(m *PenaltyManager) { m.multiplier = v }
}

// WithPenaltyHooks installs the telemetry side-channel.
func WithPenaltyHooks(h Hooks) PenaltyOption {
	return func(m *PenaltyManager) { m.hooks = h }
}

// WithPenaltyNamespace overrides the storage key prefix.
func WithPenaltyNamespace(ns string) PenaltyOption {
	return func(m *PenaltyManager) { m.ns = ns }
}

func NewPenaltyManager(store Store, opts ...PenaltyOption) *PenaltyManager {
	m := &PenaltyManager{
		store:      store,
		ns:         DefaultNamespace,
		threshold:  10,
		duration:   15 * time.Minute,
		decayRate:  1,
		multiplier: 0.5,
		hooks:      NopHooks{},
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// RecordViolation adds severity to id's decayed abuse score and opens a
// penalty window when the score crosses the threshold with no window active.
func (m *PenaltyManager) RecordViolation(ctx context.Context, id string, severity float64) (Penalty, error) {
	p, key, err := m.load(ctx, id)
	if err != nil {
		return Penalty{}, err
	}
	now := m.now()

	p.AbuseScore += severity
	p.Violations++
	p.LastViolation = now.Unix()
	m.hooks.OnViolation(id, p, nil)

	if p.AbuseScore >= m.threshold && !m.IsActive(p) {
		p.PenaltyUntil = now.Add(m.duration).Unix()
		m.hooks.OnPenaltyApplied(id, p, nil)
	}

	if err := m.store.Set(ctx, key, marshalState(p), m.recordTTL(p, now)); err != nil {
		return Penalty{}, err
	}
	return p, nil
}

// GetPenalty returns the current decayed view of id's penalty record.
func (m *PenaltyManager) GetPenalty(ctx context.Context, id string) (Penalty, error) {
	p, _, err := m.load(ctx, id)
	return p, err
}

// ClearPenalty deletes id's penalty record outright.
func (m *PenaltyManager) ClearPenalty(ctx context.Context, id string) error {
	return m.store.Delete(ctx, m.key(id))
}

// IsActive reports whether a penalty window is currently open.
func (m *PenaltyManager) IsActive(p Penalty) bool {
	return p.PenaltyUntil > 0 && m.now().Unix() < p.PenaltyUntil
}

// TimeRemaining reports how long the penalty window stays open, zero when
// none is active.
func (m *PenaltyManager) TimeRemaining(p Penalty) time.Duration {
	if !m.IsActive(p) {
		return 0
	}
	return time.Unix(p.PenaltyUntil, 0).Sub(m.now())
}

// RateLimitMultiplier reports the limit scale-down for id: the configured
// multiplier while a penalty is active, else 1. Callers apply it to their
// effective limit; the engine does not.
func (m *PenaltyManager) RateLimitMultiplier(p Penalty) float64 {
	if m.IsActive(p) {
		return m.multiplier
	}
	return 1.0
}

func (m *PenaltyManager) key(id string) string {
	return m.ns + ":penalty:" + id
}

func (m *PenaltyManager) load(ctx context.Context, id string) (Penalty, string, error) {
	key := m.key(id)

	var p Penalty
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return Penalty{}, "", err
	}
	if ok {
		if err := json.Unmarshal(raw, &p); err != nil {
			p = Penalty{}
		}
	}

	if p.LastViolation > 0 && m.decayRate > 0 {
		hours := m.now().Sub(time.Unix(p.LastViolation, 0)).Hours()
		if hours > 0 {
			p.AbuseScore -= m.decayRate * hours
			if p.AbuseScore < 0 {
				p.AbuseScore = 0
			}
		}
	}
	return p, key, nil
}

// recordTTL keeps the record alive until the score would fully decay or the
// penalty window closes, whichever is later.
func (m *PenaltyManager) recordTTL(p Penalty, now time.Time) time.Duration {
	ttl := time.Hour
	if m.decayRate > 0 {
		if d := time.Duration(p.AbuseScore / m.decayRate * float64(time.Hour)); d > ttl {
			ttl = d
		}
	}
	if p.PenaltyUntil > 0 {
		if d := time.Unix(p.PenaltyUntil, 0).Sub(now); d > ttl {
			ttl = d
		}
	}
	return ttl
}
