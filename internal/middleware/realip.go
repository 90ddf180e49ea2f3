// AngelaMos | 2026
// realip.go

package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies lists the networks whose forwarding headers are believed.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies accepts CIDRs or bare addresses. Entries may hold
// several comma separated values, which is how they arrive from the
// environment.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var nets TrustedProxies
	for _, entry := range entries {
		for _, raw := range strings.Split(entry, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if !strings.Contains(raw, "/") {
				ip := net.ParseIP(raw)
				if ip == nil {
					return nil, fmt.Errorf("parse trusted proxy %q: invalid address", raw)
				}
				bits := 8 * net.IPv6len
				if ip.To4() != nil {
					ip, bits = ip.To4(), 8*net.IPv4len
				}
				nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
			_, n, err := net.ParseCIDR(raw)
			if err != nil {
				return nil, fmt.Errorf("parse trusted proxy %q: %w", raw, err)
			}
			nets = append(nets, n)
		}
	}
	return nets, nil
}

func (t TrustedProxies) contains(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range t {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// RealIP rewrites RemoteAddr from X-Forwarded-For or X-Real-IP, but only
// when the peer is a trusted proxy. X-Forwarded-For is walked from the
// right and the first hop that is not itself a trusted proxy wins. With no
// trusted proxies the headers are ignored.
func RealIP(trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) > 0 && trusted.contains(remoteHost(r)) {
				if ip := forwardedFor(r, trusted); ip != "" {
					r.RemoteAddr = ip
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedFor(r *http.Request, trusted TrustedProxies) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				return ""
			}
			if !trusted.contains(hop) {
				return hop
			}
		}
		return ""
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return ""
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
