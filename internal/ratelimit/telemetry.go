package ratelimit

// Hooks is the optional telemetry side-channel. Every method is invoked
// synchronously on the hot path, so implementations should be cheap or hand
// off. Embed NopHooks to pick up no-op defaults for methods you don't need.
type Hooks interface {
	OnCheck(key string, d Decision, meta map[string]string)
	OnAllowed(key string, d Decision, meta map[string]string)
	OnBlocked(key string, d Decision, meta map[string]string)
	OnQuotaExceeded(id string, q Quota, meta map[string]string)
	OnViolation(id string, p Penalty, meta map[string]string)
	OnPenaltyApplied(id string, p Penalty, meta map[string]string)
}

// NopHooks implements Hooks with no-ops.
type NopHooks struct{}

func (NopHooks) OnCheck(string, Decision, map[string]string)         {}
func (NopHooks) OnAllowed(string, Decision, map[string]string)       {}
func (NopHooks) OnBlocked(string, Decision, map[string]string)       {}
func (NopHooks) OnQuotaExceeded(string, Quota, map[string]string)    {}
func (NopHooks) OnViolation(string, Penalty, map[string]string)      {}
func (NopHooks) OnPenaltyApplied(string, Penalty, map[string]string) {}
