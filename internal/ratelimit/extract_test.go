package ratelimit

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func forwardedRequest(peer string, xff string) *Request {
	h := http.Header{}
	if xff != "" {
		h.Set("X-Forwarded-For", xff)
	}
	return &Request{Path: "/api", RemoteAddr: peer + ":443", Header: h}
}

func TestClientIPDirectPeer(t *testing.T) {
	req := forwardedRequest("203.0.113.7", "")
	require.Equal(t, "203.0.113.7", clientIP(req, nil))
}

func TestClientIPSkipsTrustedProxies(t *testing.T) {
	trusted, err := parseProxies([]string{"10.0.0.0/8", "192.0.2.50"})
	require.NoError(t, err)

	req := forwardedRequest("10.0.0.1", "198.51.100.9, 10.0.0.3, 10.0.0.2")
	require.Equal(t, "198.51.100.9", clientIP(req, trusted))

	// a bare trusted IP works like a /32
	req = forwardedRequest("10.0.0.1", "198.51.100.9, 192.0.2.50")
	require.Equal(t, "198.51.100.9", clientIP(req, trusted))
}

func TestClientIPUntrustedChainStopsEarly(t *testing.T) {
	trusted, err := parseProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	// the rightmost untrusted hop wins; anything to its left is hearsay
	req := forwardedRequest("10.0.0.1", "198.51.100.9, 203.0.113.44")
	require.Equal(t, "203.0.113.44", clientIP(req, trusted))
}

func TestClientIPFallsBackOnGarbageChain(t *testing.T) {
	req := forwardedRequest("203.0.113.7", "not-an-ip, also bad")
	require.Equal(t, "203.0.113.7", clientIP(req, nil))
}

func TestParseProxiesRejectsGarbage(t *testing.T) {
	_, err := parseProxies([]string{"10.0.0.0/8", "bogus"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAPIKeyHeaderAndBearer(t *testing.T) {
	h := http.Header{}
	h.Set("X-API-Key", "k-123")
	require.Equal(t, "k-123", apiKey(&Request{Header: h}))

	h = http.Header{}
	h.Set("Authorization", "Bearer tok-456")
	require.Equal(t, "tok-456", apiKey(&Request{Header: h}))

	h = http.Header{}
	h.Set("Authorization", "Basic dXNlcjpwYXNz")
	require.Equal(t, "", apiKey(&Request{Header: h}))
}

func TestCompositeKeyPriority(t *testing.T) {
	lim, _ := newTestLimiter(t, Policy{Name: "api", Limit: 5, Window: 60, KeyStrategy: KeyComposite})
	p := lim.policy

	req := forwardedRequest("203.0.113.7", "")
	req.UserID = "u1"
	req.Header.Set("X-API-Key", "k1")
	require.Equal(t, "u1:203.0.113.7", lim.extractKey(req, &p))

	req.UserID = ""
	require.Equal(t, "k1:203.0.113.7", lim.extractKey(req, &p))

	req.Header.Del("X-API-Key")
	require.Equal(t, "203.0.113.7", lim.extractKey(req, &p))

	req.RemoteAddr = ""
	req.UserID = "u1"
	require.Equal(t, "u1", lim.extractKey(req, &p))
}

func TestCustomKeyExtractor(t *testing.T) {
	p := Policy{
		Name: "api", Limit: 5, Window: 60,
		KeyStrategy:  KeyCustom,
		KeyExtractor: func(r *Request) string { return r.Header.Get("X-Tenant") },
	}
	lim, _ := newTestLimiter(t, p)

	req := forwardedRequest("203.0.113.7", "")
	req.Header.Set("X-Tenant", "acme")
	require.Equal(t, "acme", lim.extractKey(req, &lim.policy))
}

func TestIsPrivateIP(t *testing.T) {
	require.True(t, isPrivateIP("10.1.2.3"))
	require.True(t, isPrivateIP("192.168.0.1"))
	require.True(t, isPrivateIP("127.0.0.1"))
	require.True(t, isPrivateIP("::1"))
	require.False(t, isPrivateIP("203.0.113.7"))
	require.False(t, isPrivateIP("not-an-ip"))
}
