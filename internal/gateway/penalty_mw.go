package gateway

import (
	"net/http"

	"github.com/AlexKimmel/gatekeep/internal/auth"
	"github.com/AlexKimmel/gatekeep/internal/ratelimit"
)

// Penalty rejects authenticated callers inside an active penalty window
// before the limiter runs. Violations are recorded by the application (see
// the RateLimit onBlocked hook), not here.
func Penalty(pm *ratelimit.PenaltyManager, skip map[string]struct{}) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			id, ok := auth.IdentityFrom(r.Context())
			if !ok || id.UserID == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := pm.GetPenalty(r.Context(), id.UserID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "penalty_error", "internal penalty error")
				return
			}
			if pm.IsActive(p) {
				retry := int(pm.TimeRemaining(p).Seconds())
				if retry < 1 {
					retry = 1
				}
				writeReject(w, "penalty_active", "Temporarily blocked for abusive traffic", retry)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
