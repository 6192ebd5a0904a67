package ratelimit

import "net/http"

// Request is the framework-neutral view of an inbound request. Adapters build
// one from whatever their framework hands them; the engine never touches the
// network itself.
type Request struct {
	Path       string
	RemoteAddr string // direct peer, "host" or "host:port"
	Header     http.Header

	// UserID is the authenticated caller, empty when anonymous. Adapters
	// fill it from their auth layer.
	UserID string
}

// FromHTTP builds a Request view over r. UserID is left empty; callers with
// an auth layer set it afterwards.
func FromHTTP(r *http.Request) *Request {
	return &Request{
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		Header:     r.Header,
	}
}
