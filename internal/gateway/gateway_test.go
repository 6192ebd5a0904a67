package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AlexKimmel/gatekeep/internal/auth"
	"github.com/AlexKimmel/gatekeep/internal/ratelimit"
	"github.com/AlexKimmel/gatekeep/internal/ratelimit/memory"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func newLimiter(t *testing.T, p ratelimit.Policy) *ratelimit.Limiter {
	t.Helper()
	lim, err := ratelimit.New(memory.New(), p, ratelimit.WithPrivateIPExemption(false))
	require.NoError(t, err)
	return lim
}

func doRequest(h http.Handler, path, ip string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.RemoteAddr = ip + ":51234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRateLimitHeaders(t *testing.T) {
	lim := newLimiter(t, ratelimit.Policy{Name: "api", Limit: 2, Window: 60})
	h := Chain(okHandler(), RateLimit(lim, nil, nil))

	w := doRequest(h, "/api", "203.0.113.7")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "2", w.Header().Get("RateLimit-Limit"))
	require.Equal(t, "1", w.Header().Get("RateLimit-Remaining"))
	require.NotEmpty(t, w.Header().Get("RateLimit-Reset"))
	require.Empty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitReject(t *testing.T) {
	lim := newLimiter(t, ratelimit.Policy{Name: "api", Limit: 1, Window: 60})

	var blocked int
	h := Chain(okHandler(), RateLimit(lim, nil, func(*http.Request, ratelimit.Decision) {
		blocked++
	}))

	w := doRequest(h, "/api", "203.0.113.7")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(h, "/api", "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
	require.Equal(t, 1, blocked)

	var body struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retryAfter"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "rate_limit_exceeded", body.Error)
	require.NotEmpty(t, body.Message)
	require.Greater(t, body.RetryAfter, 0)
}

func TestRateLimitSkipPaths(t *testing.T) {
	lim := newLimiter(t, ratelimit.Policy{Name: "api", Limit: 1, Window: 60})
	skip := map[string]struct{}{"/metrics": {}}
	h := Chain(okHandler(), RateLimit(lim, skip, nil))

	for i := 0; i < 5; i++ {
		w := doRequest(h, "/metrics", "203.0.113.7")
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, w.Header().Get("RateLimit-Limit"))
	}
}

func withIdentity(next http.Handler, id auth.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func TestQuotaMiddleware(t *testing.T) {
	qm := ratelimit.NewQuotaManager(memory.New(), ratelimit.WithQuotaLocation(time.UTC))
	def := ratelimit.Quota{Name: "m", Limit: 2, Period: ratelimit.Monthly}

	h := withIdentity(Chain(okHandler(), Quota(qm, def, nil)), auth.Identity{UserID: "u1"})

	for i := 0; i < 2; i++ {
		w := doRequest(h, "/api", "203.0.113.7")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := doRequest(h, "/api", "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "quota_exceeded", body.Error)
}

func TestQuotaMiddlewareAnonymousPassThrough(t *testing.T) {
	qm := ratelimit.NewQuotaManager(memory.New(), ratelimit.WithQuotaLocation(time.UTC))
	def := ratelimit.Quota{Name: "m", Limit: 1, Period: ratelimit.Monthly}
	h := Chain(okHandler(), Quota(qm, def, nil))

	for i := 0; i < 3; i++ {
		w := doRequest(h, "/api", "203.0.113.7")
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestPenaltyMiddleware(t *testing.T) {
	pm := ratelimit.NewPenaltyManager(memory.New(),
		ratelimit.WithPenaltyThreshold(1),
		ratelimit.WithPenaltyDuration(10*time.Minute))

	_, err := pm.RecordViolation(context.Background(), "u1", 5)
	require.NoError(t, err)

	h := withIdentity(Chain(okHandler(), Penalty(pm, nil)), auth.Identity{UserID: "u1"})

	w := doRequest(h, "/api", "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))

	// a clean caller passes
	h2 := withIdentity(Chain(okHandler(), Penalty(pm, nil)), auth.Identity{UserID: "u2"})
	w = doRequest(h2, "/api", "203.0.113.7")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBodyLimit(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		if _, err := r.Body.Read(buf); err != nil && err.Error() == "http: request body too large" {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), BodyLimit(8))

	r := httptest.NewRequest(http.MethodPost, "/api", http.NoBody)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
}
