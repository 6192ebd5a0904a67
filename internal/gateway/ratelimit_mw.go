package gateway

import (
	"net/http"
	"strconv"

	"github.com/AlexKimmel/gatekeep/internal/auth"
	"github.com/AlexKimmel/gatekeep/internal/ratelimit"
)

// RateLimit renders limiter decisions as HTTP: RateLimit-* headers on every
// response, 429 with Retry-After and a structured body on a reject. Paths in
// skip (ops endpoints) bypass the limiter without building a request view.
// onBlocked, when non-nil, runs after a reject so the application can record
// violations or emit its own signals.
func RateLimit(
	lim *ratelimit.Limiter,
	skip map[string]struct{},
	onBlocked func(*http.Request, ratelimit.Decision),
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			req := ratelimit.FromHTTP(r)
			if id, ok := auth.IdentityFrom(r.Context()); ok {
				req.UserID = id.UserID
			}

			dec, err := lim.Check(r.Context(), req)
			if err != nil {
				// A store failure must not be masked as allowed or
				// denied; surface it and let the caller retry.
				writeError(w, http.StatusInternalServerError, "rate_limiter_error", "internal rate limiter error")
				return
			}

			w.Header().Set("RateLimit-Limit", strconv.Itoa(dec.Limit))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			w.Header().Set("RateLimit-Reset", strconv.FormatInt(dec.ResetAt, 10))

			if !dec.Allowed {
				if onBlocked != nil {
					onBlocked(r, dec)
				}
				writeReject(w, "rate_limit_exceeded", "Too many requests", dec.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
