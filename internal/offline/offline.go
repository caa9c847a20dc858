// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNonLocalhost is returned for a non-loopback endpoint under LocalOnly.
	ErrNonLocalhost = errors.New("local-only mode: only localhost/127.0.0.1 endpoints are allowed")

	// ErrWebFetchBlocked is returned when research tries to reach the web under LocalOnly.
	ErrWebFetchBlocked = errors.New("local-only mode: web search is disabled")

	// ErrPublicListen is returned for a non-loopback listen address under LocalOnly.
	ErrPublicListen = errors.New("local-only mode: the server may only listen on a loopback address")

	// ErrInvalidURLScheme is returned when URL scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https schemes are allowed")
)

// =============================================================================
// POLICY
// =============================================================================

// Policy is the network policy of one process. The zero value allows
// everything except non-HTTP schemes.
type Policy struct {
	LocalOnly bool
}

// CheckEndpoint validates an inference server URL.
func (p Policy) CheckEndpoint(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", rawURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}
	if p.LocalOnly && !IsLocalhost(parsed.Hostname()) {
		return fmt.Errorf("%w: %s", ErrNonLocalhost, parsed.Host)
	}
	return nil
}

// CheckWebFetch reports whether the research phase may reach the web.
func (p Policy) CheckWebFetch() error {
	if p.LocalOnly {
		return ErrWebFetchBlocked
	}
	return nil
}

// CheckListen validates a server listen address. Under LocalOnly an empty
// host, which binds every interface, is rejected too.
func (p Policy) CheckListen(addr string) error {
	if !p.LocalOnly {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if host == "" || !IsLocalhost(host) {
		return fmt.Errorf("%w: %s", ErrPublicListen, addr)
	}
	return nil
}

// Badge returns "[LOCAL]" under LocalOnly, empty otherwise.
func (p Policy) Badge() string {
	if p.LocalOnly {
		return "[LOCAL]"
	}
	return ""
}

// Transport wraps base so every request is checked with CheckEndpoint
// before it leaves the process. A nil base means http.DefaultTransport.
func (p Policy) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &guardedTransport{policy: p, base: base}
}

type guardedTransport struct {
	policy Policy
	base   http.RoundTripper
}

func (t *guardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.policy.CheckEndpoint(req.URL.String()); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost checks if a host string refers to localhost.
// Accepts "localhost", the whole 127.0.0.0/8 range and every IPv6 loopback
// spelling, with or without port and brackets.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
