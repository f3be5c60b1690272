package realtime

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy accepts requests without an Origin header, same-host and
// loopback origins, and any configured host. Ports are ignored.
type originPolicy struct {
	hosts map[string]struct{}
}

func newOriginPolicy(allowed []string) originPolicy {
	p := originPolicy{hosts: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		if host := hostOf(origin); host != "" {
			p.hosts[host] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) allows(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	host := hostOf(origin)
	if host == "" {
		return false
	}
	if _, ok := p.hosts[host]; ok {
		return true
	}
	return host == hostOf(r.Host) || isLoopback(host)
}

// hostOf lowercases the host part of an origin URL or host:port pair.
func hostOf(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "://") {
		u, err := url.Parse(value)
		if err != nil {
			return ""
		}
		value = u.Host
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		value = host
	}
	return strings.ToLower(strings.Trim(value, "[]"))
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return host == "localhost"
}
