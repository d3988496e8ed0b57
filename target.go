package amtokenmiddleware

import (
	"errors"
	"net/http"
	"strings"
)

// ErrTargetUnavailable is returned by a TargetFunc that cannot build the
// expected audience from the request.
var ErrTargetUnavailable = errors.New("expected audience cannot be derived from the request")

// TargetFunc returns the expected audience for a request. Tokens are issued
// for the origin (scheme://host) of the service they are sent to.
type TargetFunc func(r *http.Request) (string, error)

// TrustedProxyConfig defines which reverse proxy headers to trust when the
// target is derived from the request.
//
// Only enable it behind a reverse proxy that strips client-provided forwarded
// headers: a client that can set them chooses the audience it is checked
// against.
type TrustedProxyConfig struct {
	// TrustXForwardedProto enables the X-Forwarded-Proto header.
	TrustXForwardedProto bool

	// TrustXForwardedHost enables the X-Forwarded-Host header.
	TrustXForwardedHost bool

	// TrustForwarded enables the RFC 7239 Forwarded header. It takes
	// precedence over X-Forwarded-* when both are trusted.
	TrustForwarded bool
}

func (c *TrustedProxyConfig) hasAnyTrustedHeaders() bool {
	if c == nil {
		return false
	}
	return c.TrustXForwardedProto || c.TrustXForwardedHost || c.TrustForwarded
}

// TargetFromRequest derives the target from the request itself, without
// trusting any forwarded header.
func TargetFromRequest(r *http.Request) (string, error) {
	return requestOrigin(r, nil)
}

// TargetFromProxiedRequest returns a TargetFunc that derives the target from
// the request and the forwarded headers config trusts.
func TargetFromProxiedRequest(config *TrustedProxyConfig) TargetFunc {
	return func(r *http.Request) (string, error) {
		return requestOrigin(r, config)
	}
}

// requestOrigin builds scheme://host for r. Default ports are stripped
// (RFC 3986 Section 6.2.3) so https://api.example.com:443 and
// https://api.example.com name the same audience.
func requestOrigin(r *http.Request, config *TrustedProxyConfig) (string, error) {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	host := r.Host

	if config.hasAnyTrustedHeaders() {
		forwardedScheme, forwardedHost := "", ""

		if config.TrustForwarded {
			if forwarded := r.Header.Get("Forwarded"); forwarded != "" {
				forwardedScheme, forwardedHost = parseForwardedHeader(forwarded)
			}
		}
		if config.TrustXForwardedProto && forwardedScheme == "" {
			forwardedScheme = getLeftmost(r.Header.Get("X-Forwarded-Proto"))
		}
		if config.TrustXForwardedHost && forwardedHost == "" {
			forwardedHost = getLeftmost(r.Header.Get("X-Forwarded-Host"))
		}

		if forwardedScheme != "" {
			scheme = strings.ToLower(forwardedScheme)
		}
		if forwardedHost != "" {
			host = forwardedHost
		}
	}

	if scheme != "http" && scheme != "https" {
		return "", ErrTargetUnavailable
	}
	if host == "" || strings.ContainsAny(host, "/?#@ ") {
		return "", ErrTargetUnavailable
	}

	return scheme + "://" + normalizePort(strings.ToLower(host), scheme), nil
}

// getLeftmost extracts the leftmost value of a comma-separated header, the
// one closest to the client.
func getLeftmost(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}

// parseForwardedHeader returns the proto and host of the leftmost entry of
// an RFC 7239 Forwarded header, e.g. "for=192.0.2.60;proto=https;host=api.example.com".
func parseForwardedHeader(forwarded string) (scheme, host string) {
	entry, _, _ := strings.Cut(forwarded, ",")

	for _, part := range strings.Split(entry, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch strings.ToLower(key) {
		case "proto":
			scheme = value
		case "host":
			host = value
		}
	}

	return scheme, host
}

// normalizePort strips the default port of scheme from host.
func normalizePort(host, scheme string) string {
	colonIdx := strings.LastIndex(host, ":")
	if colonIdx == -1 {
		return host
	}

	// [::1] has colons but no port.
	if closeBracketIdx := strings.Index(host, "]"); closeBracketIdx != -1 && colonIdx < closeBracketIdx {
		return host
	}

	port := host[colonIdx+1:]
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return host[:colonIdx]
	}
	return host
}
