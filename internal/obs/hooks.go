package obs

import (
	"github.com/rs/zerolog"

	"github.com/AlexKimmel/gatekeep/internal/ratelimit"
)

// Hooks bridges the limiter telemetry interface onto prometheus counters and
// the structured log. All methods run on the check path, so they only touch
// counters and leveled log events.
type Hooks struct {
	log zerolog.Logger
	m   *Metrics
}

func NewHooks(log zerolog.Logger, m *Metrics) *Hooks {
	return &Hooks{log: log, m: m}
}

func (h *Hooks) OnCheck(_ string, _ ratelimit.Decision, meta map[string]string) {
	h.m.ChecksTotal.WithLabelValues(meta["policy"]).Inc()
}

func (h *Hooks) OnAllowed(_ string, _ ratelimit.Decision, meta map[string]string) {
	h.m.AllowedTotal.WithLabelValues(meta["policy"]).Inc()
}

func (h *Hooks) OnBlocked(key string, d ratelimit.Decision, meta map[string]string) {
	h.m.BlockedTotal.WithLabelValues(meta["policy"]).Inc()
	h.log.Debug().
		Str("key", key).
		Str("policy", meta["policy"]).
		Int("retry_after", d.RetryAfter).
		Msg("rate limited")
}

func (h *Hooks) OnQuotaExceeded(id string, q ratelimit.Quota, meta map[string]string) {
	h.m.QuotaExceeded.WithLabelValues(meta["quota"]).Inc()
	h.log.Info().
		Str("id", id).
		Str("quota", q.Name).
		Int("usage", q.CurrentUsage).
		Int("limit", q.Limit).
		Msg("quota exceeded")
}

func (h *Hooks) OnViolation(id string, p ratelimit.Penalty, _ map[string]string) {
	h.m.ViolationsTotal.Inc()
	h.log.Debug().
		Str("id", id).
		Float64("score", p.AbuseScore).
		Int("violations", p.Violations).
		Msg("violation recorded")
}

func (h *Hooks) OnPenaltyApplied(id string, p ratelimit.Penalty, _ map[string]string) {
	h.m.PenaltiesTotal.Inc()
	h.log.Warn().
		Str("id", id).
		Float64("score", p.AbuseScore).
		Int64("until", p.PenaltyUntil).
		Msg("penalty applied")
}
