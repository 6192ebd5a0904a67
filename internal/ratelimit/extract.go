package ratelimit

import (
	"net"
	"net/netip"
	"strings"
)

// Paths that are never rate limited, regardless of policy.
var healthCheckPaths = map[string]struct{}{
	"/health":  {},
	"/healthz": {},
	"/ping":    {},
	"/ready":   {},
	"/status":  {},
}

// parseProxies accepts CIDR blocks and bare IPs.
func parseProxies(list []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			prefixes = append(prefixes, p)
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, &ConfigError{"invalid trusted proxy " + s}
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// clientIP walks the forwarded chain right to left, skipping trusted proxies,
// and returns the first address we cannot vouch for. Falls back to the direct
// peer when there is no usable chain.
func clientIP(req *Request, trusted []netip.Prefix) string {
	if req.Header != nil {
		var chain []string
		for _, v := range req.Header.Values("X-Forwarded-For") {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					chain = append(chain, part)
				}
			}
		}
		for i := len(chain) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(chain[i])
			if err != nil {
				continue
			}
			if !isTrusted(addr, trusted) {
				return addr.String()
			}
		}
	}
	return peerIP(req.RemoteAddr)
}

func peerIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String()
	}
	return ""
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func isPrivateIP(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}

func apiKey(req *Request) string {
	if req.Header == nil {
		return ""
	}
	if k := strings.TrimSpace(req.Header.Get("X-API-Key")); k != "" {
		return k
	}
	auth := strings.TrimSpace(req.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// extractKey derives the caller identity for p's key strategy. An empty
// return means the request is unidentifiable and must be admitted as is.
func (l *Limiter) extractKey(req *Request, p *Policy) string {
	if p.KeyExtractor != nil {
		return p.KeyExtractor(req)
	}

	switch p.KeyStrategy {
	case KeyIP:
		return clientIP(req, l.proxies)
	case KeyUser:
		return req.UserID
	case KeyAPIKey:
		return apiKey(req)
	case KeyComposite:
		user := req.UserID
		key := apiKey(req)
		ip := clientIP(req, l.proxies)
		switch {
		case user != "" && ip != "":
			return user + ":" + ip
		case key != "" && ip != "":
			return key + ":" + ip
		case user != "":
			return user
		case key != "":
			return key
		default:
			return ip
		}
	}
	return ""
}

// isExempt short-circuits before key extraction and before any store access.
func (l *Limiter) isExempt(req *Request, p *Policy) bool {
	if _, ok := healthCheckPaths[req.Path]; ok {
		return true
	}

	exempt := make(map[string]struct{}, len(p.Exemptions))
	for _, e := range p.Exemptions {
		exempt[e] = struct{}{}
	}
	if _, ok := exempt[req.Path]; ok {
		return true
	}

	ip := clientIP(req, l.proxies)
	if ip == "" {
		return false
	}
	if l.exemptPrivate && isPrivateIP(ip) {
		return true
	}
	_, ok := exempt[ip]
	return ok
}
