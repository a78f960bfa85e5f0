package mw

import (
	"net/http"
	"strings"

	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/utils"
)

// AllowOnlyCIDRS lets through only clients whose IP matches one of the IPs/CIDRs.
// An empty list disables the check. trustProxy resolves the client IP from
// X-Forwarded-For / X-Real-IP (e.g. behind cloudflared).
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Debug("client ip rejected",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path),
					logger.Bool("trust_proxy", trustProxy))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnforceHost lets through only requests whose Host matches one of the
// patterns. "*.example.com" matches any subdomain; a pattern without a
// port matches the host on any port. An empty list disables the check.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	m := newHostMatcher(allowedHosts)
	if m.empty() {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.match(r.Host) {
				log.Debug("host rejected",
					logger.String("host", r.Host),
					logger.String("path", r.URL.Path))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

type hostMatcher struct {
	exact    map[string]struct{} // host or host:port
	suffixes []string            // ".example.com"
}

func newHostMatcher(patterns []string) *hostMatcher {
	m := &hostMatcher{exact: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "":
		case strings.HasPrefix(p, "*."):
			m.suffixes = append(m.suffixes, p[1:])
		default:
			m.exact[p] = struct{}{}
		}
	}
	return m
}

func (m *hostMatcher) empty() bool {
	return len(m.exact) == 0 && len(m.suffixes) == 0
}

func (m *hostMatcher) match(host string) bool {
	host = strings.ToLower(host)
	if _, ok := m.exact[host]; ok {
		return true
	}
	bare := utils.ParseHostNoPort(host)
	if _, ok := m.exact[bare]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(bare, suffix) {
			return true
		}
	}
	return false
}
