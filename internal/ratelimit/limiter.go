// Package ratelimit decides, in constant-ish time, whether to admit the
// current unit of work for an identified caller, and reports how much
// capacity remains and when it replenishes. All counter state lives in a
// Store; the in-process types hold no authoritative state between calls.
package ratelimit

import (
	"context"
	"net/netip"
	"sync"
	"time"
)

// DefaultNamespace prefixes every storage key written by this package.
const DefaultNamespace = "gatekeep"

// Limiter is the decision engine: it resolves the policy, evaluates
// exemptions, derives the caller key, runs the policy's algorithm against the
// store and emits a Decision. It holds no locks across a check and performs
// no retries; store failures propagate to the caller.
type Limiter struct {
	store         Store
	policy        Policy
	resolver      Resolver
	rawProxies    []string
	proxies       []netip.Prefix
	exemptPrivate bool
	hooks         Hooks
	ns            string
	now           func() time.Time

	// Algorithm values are stateless, so caching them per policy name is
	// plain memoization of capacity/rate derived from the policy.
	mu    sync.RWMutex
	algos map[string]algorithm
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithResolver makes the limiter resolve a policy per request instead of
// using a fixed one. The callback may block on its own lookups.
func WithResolver(r Resolver) Option {
	return func(l *Limiter) { l.resolver = r }
}

// WithTrustedProxies sets the CIDR blocks (or bare IPs) whose forwarded
// headers are believed when deriving the client IP.
func WithTrustedProxies(cidrs ...string) Option {
	return func(l *Limiter) { l.rawProxies = cidrs }
}

// WithPrivateIPExemption controls whether private and loopback client IPs
// bypass admission. Enabled by default.
func WithPrivateIPExemption(on bool) Option {
	return func(l *Limiter) { l.exemptPrivate = on }
}

// WithHooks installs the telemetry side-channel.
func WithHooks(h Hooks) Option {
	return func(l *Limiter) { l.hooks = h }
}

// WithNamespace overrides the storage key prefix.
func WithNamespace(ns string) Option {
	return func(l *Limiter) { l.ns = ns }
}

// WithClock overrides the time source. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New builds a Limiter over store. policy is the fixed policy; it is ignored
// when WithResolver is given, in which case validation happens per request.
func New(store Store, policy Policy, opts ...Option) (*Limiter, error) {
	l := &Limiter{
		store:         store,
		policy:        policy,
		exemptPrivate: true,
		hooks:         NopHooks{},
		ns:            DefaultNamespace,
		now:           time.Now,
		algos:         make(map[string]algorithm),
	}
	for _, o := range opts {
		o(l)
	}

	proxies, err := parseProxies(l.rawProxies)
	if err != nil {
		return nil, err
	}
	l.proxies = proxies

	if l.resolver == nil {
		p, err := normalizePolicy(l.policy)
		if err != nil {
			return nil, err
		}
		l.policy = p
		if _, err := l.algorithmFor(p); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Check admits or rejects req at the resolved policy's cost.
func (l *Limiter) Check(ctx context.Context, req *Request) (Decision, error) {
	return l.CheckN(ctx, req, 0)
}

// CheckN admits or rejects req, consuming cost units. cost <= 0 falls back
// to the policy's cost.
func (l *Limiter) CheckN(ctx context.Context, req *Request, cost int) (Decision, error) {
	p, err := l.resolvePolicy(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	if cost <= 0 {
		cost = p.Cost
	}
	now := l.now()

	if l.isExempt(req, &p) {
		return allowUnconditionally(p, now), nil
	}

	key := l.extractKey(req, &p)
	if key == "" {
		// Unidentifiable callers are admitted, not blocked: ambiguity
		// favors availability.
		return allowUnconditionally(p, now), nil
	}

	algo, err := l.algorithmFor(p)
	if err != nil {
		return Decision{}, err
	}

	storageKey := l.ns + ":" + p.Name + ":" + key
	raw, ok, err := l.store.Get(ctx, storageKey)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		raw = nil
	}

	out, next := algo.check(raw, now, cost)

	// 2x window leaves slack for idle callers to expire lazily without
	// unbounded growth.
	ttl := 2 * time.Duration(p.Window) * time.Second
	if err := l.store.Set(ctx, storageKey, next, ttl); err != nil {
		return Decision{}, err
	}

	remaining := out.remaining
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:    out.allowed,
		Limit:      p.Limit,
		Remaining:  remaining,
		ResetAt:    out.resetAt,
		RetryAfter: out.retryAfter,
	}

	meta := map[string]string{"policy": p.Name}
	l.hooks.OnCheck(key, d, meta)
	if d.Allowed {
		l.hooks.OnAllowed(key, d, meta)
	} else {
		l.hooks.OnBlocked(key, d, meta)
	}
	return d, nil
}

func (l *Limiter) resolvePolicy(ctx context.Context, req *Request) (Policy, error) {
	if l.resolver == nil {
		return l.policy, nil
	}
	p, err := l.resolver(ctx, req)
	if err != nil {
		return Policy{}, err
	}
	return normalizePolicy(p)
}

func (l *Limiter) algorithmFor(p Policy) (algorithm, error) {
	l.mu.RLock()
	a, ok := l.algos[p.Name]
	l.mu.RUnlock()
	if ok {
		return a, nil
	}

	a, err := newAlgorithm(p)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.algos[p.Name] = a
	l.mu.Unlock()
	return a, nil
}

func allowUnconditionally(p Policy, now time.Time) Decision {
	return Decision{
		Allowed:   true,
		Limit:     p.Limit,
		Remaining: p.Limit,
		ResetAt:   now.Unix() + int64(p.Window),
	}
}
