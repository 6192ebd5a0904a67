package ratelimit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// QuotaPeriod is a calendar-aligned reset horizon. Resets land on the next
// top-of-hour, local midnight, first of the next month or Jan 1, not on a
// rolling boundary.
type QuotaPeriod string

const (
	Hourly  QuotaPeriod = "hourly"
	Daily   QuotaPeriod = "daily"
	Monthly QuotaPeriod = "monthly"
	Yearly  QuotaPeriod = "yearly"
)

// Quota is a longer-horizon usage cap, independent of the per-window
// admission algorithms.
type Quota struct {
	Name         string      `json:"name"`
	Limit        int         `json:"limit"`
	Period       QuotaPeriod `json:"period"`
	CurrentUsage int         `json:"currentUsage"`
	ResetAt      int64       `json:"resetAt"` // epoch seconds
}

type quotaState struct {
	Usage   int   `json:"usage"`
	ResetAt int64 `json:"resetAt"`
}

// QuotaManager keeps calendar-period usage ledgers in a Store. Records are
// created lazily on first check and reset lazily the instant their boundary
// passes; there is no background sweep.
type QuotaManager struct {
	store Store
	ns    string
	loc   *time.Location
	hooks Hooks
	now   func() time.Time
}

// QuotaOption configures a QuotaManager.
type QuotaOption func(*QuotaManager)

// WithQuotaLocation sets the time zone calendar boundaries are computed in.
// Defaults to time.Local.
func WithQuotaLocation(loc *time.Location) QuotaOption {
	return func(m *QuotaManager) { m.loc = loc }
}

// WithQuotaHooks installs the telemetry side-channel.
func WithQuotaHooks(h Hooks) QuotaOption {
	return func(m *QuotaManager) { m.hooks = h }
}

// WithQuotaNamespace overrides the storage key prefix.
func WithQuotaNamespace(ns string) QuotaOption {
	return func(m *QuotaManager) { m.ns = ns }
}

func NewQuotaManager(store Store, opts ...QuotaOption) *QuotaManager {
	m := &QuotaManager{
		store: store,
		ns:    DefaultNamespace,
		loc:   time.Local,
		hooks: NopHooks{},
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CheckQuota reports whether id can spend cost units against def. It never
// writes, so repeated checks leave stored usage untouched; callers admit
// work with CheckQuota and record it with ConsumeQuota.
func (m *QuotaManager) CheckQuota(ctx context.Context, id string, def Quota, cost int) (bool, Quota, error) {
	if cost <= 0 {
		cost = 1
	}
	q, _, err := m.load(ctx, id, def)
	if err != nil {
		return false, Quota{}, err
	}
	allowed := q.CurrentUsage+cost <= q.Limit
	if !allowed {
		m.hooks.OnQuotaExceeded(id, q, map[string]string{"quota": q.Name})
	}
	return allowed, q, nil
}

// ConsumeQuota records cost units of usage for id. It does not enforce the
// limit; call CheckQuota first.
func (m *QuotaManager) ConsumeQuota(ctx context.Context, id string, def Quota, cost int) (Quota, error) {
	if cost <= 0 {
		cost = 1
	}
	q, key, err := m.load(ctx, id, def)
	if err != nil {
		return Quota{}, err
	}
	q.CurrentUsage += cost

	ttl := time.Duration(q.ResetAt-m.now().Unix()) * time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	st := quotaState{Usage: q.CurrentUsage, ResetAt: q.ResetAt}
	if err := m.store.Set(ctx, key, marshalState(st), ttl); err != nil {
		return Quota{}, err
	}
	return q, nil
}

// load returns the current view of id's quota, applying a lazy reset when the
// boundary has passed. The reset is not persisted here; the next consume
// writes the fresh state.
func (m *QuotaManager) load(ctx context.Context, id string, def Quota) (Quota, string, error) {
	now := m.now()
	reset, err := nextReset(def.Period, now, m.loc)
	if err != nil {
		return Quota{}, "", err
	}

	key := m.ns + ":quota:" + def.Name + ":" + id
	q := def
	q.CurrentUsage = 0
	q.ResetAt = reset

	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return Quota{}, "", err
	}
	if ok {
		var st quotaState
		if err := json.Unmarshal(raw, &st); err == nil {
			q.CurrentUsage = st.Usage
			q.ResetAt = st.ResetAt
		}
	}

	if now.Unix() >= q.ResetAt {
		q.CurrentUsage = 0
		q.ResetAt = reset
	}
	return q, key, nil
}

func nextReset(period QuotaPeriod, now time.Time, loc *time.Location) (int64, error) {
	t := now.In(loc)
	switch period {
	case Hourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc).Unix(), nil
	case Daily:
		return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc).Unix(), nil
	case Monthly:
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc).Unix(), nil
	case Yearly:
		return time.Date(t.Year()+1, time.January, 1, 0, 0, 0, 0, loc).Unix(), nil
	}
	return 0, &ConfigError{"unknown quota period " + strconv.Quote(string(period))}
}
