package gateway

import (
	"net/http"
	"time"

	"github.com/AlexKimmel/gatekeep/internal/auth"
	"github.com/AlexKimmel/gatekeep/internal/ratelimit"
)

// Quota enforces a calendar-period cap for authenticated callers on top of
// the per-window limiter. Anonymous requests pass through; the limiter still
// covers them by IP.
func Quota(qm *ratelimit.QuotaManager, def ratelimit.Quota, skip map[string]struct{}) Middleware {
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

			allowed, q, err := qm.CheckQuota(r.Context(), id.UserID, def, 1)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "quota_error", "internal quota error")
				return
			}
			if !allowed {
				retry := int(q.ResetAt - time.Now().Unix())
				if retry < 1 {
					retry = 1
				}
				writeReject(w, "quota_exceeded", "Quota exhausted for period", retry)
				return
			}
			if _, err := qm.ConsumeQuota(r.Context(), id.UserID, def, 1); err != nil {
				writeError(w, http.StatusInternalServerError, "quota_error", "internal quota error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
