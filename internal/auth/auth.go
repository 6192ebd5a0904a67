package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const keyIdentity ctxKey = 0

// Identity is the authenticated caller attached to the request context. Plan
// names a rate-limit tier; the limiter's policy resolver maps it to a preset.
type Identity struct {
	UserID string
	Plan   string
}

// Store is a static in-memory key store: secret -> Identity.
type Store struct {
	header   string
	bySecret map[string]Identity
}

// NewStatic creates a new static key store.
// header: HTTP header to read the key from (e.g., "X-API-Key")
func NewStatic(header string, keys map[string]Identity) *Store {
	h := header
	if h == "" {
		h = "X-API-Key"
	}
	return &Store{header: h, bySecret: keys}
}

// WithIdentity injects the identity into context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, keyIdentity, id)
}

// IdentityFrom extracts the identity from context (if present).
func IdentityFrom(ctx context.Context) (Identity, bool) {
	v := ctx.Value(keyIdentity)
	if v == nil {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// Middleware resolves the API key into an Identity. A missing key runs the
// request anonymously so the limiter can still key it by IP; a key that is
// present but unknown is rejected.
func (s *Store) Middleware(skipPaths map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hname := s.header

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skipPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			secret := strings.TrimSpace(r.Header.Get(hname))
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, ok := s.bySecret[secret]
			if !ok {
				writeJSON(w, http.StatusUnauthorized, "invalid_api_key", "API key not recognized")
				return
			}
			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","message":"` + msg + `"}`))
}
