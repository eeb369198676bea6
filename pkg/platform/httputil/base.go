package httputil

import (
	"net/http"
	"net/url"
	"strings"
)

// BaseURL returns the scheme and host resource links are rendered against.
// A configured public base wins; otherwise the request's own scheme and host
// are used, honoring X-Forwarded-Proto and X-Forwarded-Host.
func BaseURL(r *http.Request, public *url.URL) *url.URL {
	if public != nil {
		u := *public
		return &u
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}

	host := r.Host
	if fwd := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}
	return &url.URL{Scheme: scheme, Host: host}
}

func firstHeaderValue(v string) string {
	if idx := strings.Index(v, ","); idx != -1 {
		v = v[:idx]
	}
	return strings.TrimSpace(v)
}
