package auth

import (
	"net"
	"net/url"
	"strings"
)

// OriginPolicy validates a connection's declared origin against an
// allow-list. An empty allow-list permits only loopback origins; an absent
// origin header is rejected whenever the allow-list is non-empty.
type OriginPolicy struct {
	allowed map[string]struct{}
}

// NewOriginPolicy creates an origin policy from an allow-list of origins
// (scheme://host[:port], compared case-insensitively).
func NewOriginPolicy(allowed []string) *OriginPolicy {
	m := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		m[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return &OriginPolicy{allowed: m}
}

// Check returns ErrOriginDenied when the origin is not permitted.
func (p *OriginPolicy) Check(origin string) error {
	if len(p.allowed) == 0 {
		// No allow-list configured: loopback origins only. Non-browser
		// clients that send no Origin header are also permitted.
		if origin == "" || isLoopbackOrigin(origin) {
			return nil
		}
		return ErrOriginDenied
	}

	if origin == "" {
		return ErrOriginDenied
	}
	if _, ok := p.allowed[strings.ToLower(strings.TrimRight(origin, "/"))]; ok {
		return nil
	}
	return ErrOriginDenied
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
