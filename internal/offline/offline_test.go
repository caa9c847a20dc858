// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// =============================================================================
// LOCALHOST DETECTION TESTS
// =============================================================================

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"localhost:1234", true},
		{"127.0.0.1", true},
		{"127.0.0.1:11434", true},
		{"127.8.9.10", true},
		{"::1", true},
		{"[::1]", true},
		{"[::1]:8080", true},
		{"0:0:0:0:0:0:0:1", true},
		{"", false},
		{"192.168.1.10", false},
		{"10.0.0.1", false},
		{"api.openai.com", false},
		{"localhost.evil.com", false},
		{"127.0.0.1.nip.io", false},
	}
	for _, tt := range tests {
		if got := IsLocalhost(tt.host); got != tt.want {
			t.Errorf("IsLocalhost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

// =============================================================================
// POLICY TESTS
// =============================================================================

func TestPolicy_CheckEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		localOnly bool
		url       string
		wantErr   error
	}{
		{"local allowed offline", true, "http://127.0.0.1:1234/v1", nil},
		{"remote blocked offline", true, "https://api.example.com/v1", ErrNonLocalhost},
		{"remote allowed online", false, "https://api.example.com/v1", nil},
		{"file scheme always blocked", false, "file:///etc/passwd", ErrInvalidURLScheme},
		{"javascript scheme blocked", true, "javascript:alert(1)", ErrInvalidURLScheme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Policy{LocalOnly: tt.localOnly}.CheckEndpoint(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPolicy_CheckEndpoint_Unparseable(t *testing.T) {
	if err := (Policy{}).CheckEndpoint("http://[::1"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPolicy_WebFetchAndBadge(t *testing.T) {
	online := Policy{}
	if err := online.CheckWebFetch(); err != nil {
		t.Errorf("online web fetch: %v", err)
	}
	if online.Badge() != "" {
		t.Errorf("online badge = %q", online.Badge())
	}

	local := Policy{LocalOnly: true}
	if !errors.Is(local.CheckWebFetch(), ErrWebFetchBlocked) {
		t.Error("local-only should block web fetch")
	}
	if local.Badge() != "[LOCAL]" {
		t.Errorf("local badge = %q", local.Badge())
	}
}

func TestPolicy_CheckListen(t *testing.T) {
	if err := (Policy{}).CheckListen("0.0.0.0:8787"); err != nil {
		t.Errorf("online policy rejected public listen: %v", err)
	}

	local := Policy{LocalOnly: true}
	for _, addr := range []string{"127.0.0.1:8787", "localhost:9000", "[::1]:80"} {
		if err := local.CheckListen(addr); err != nil {
			t.Errorf("CheckListen(%q) = %v", addr, err)
		}
	}
	for _, addr := range []string{":8787", "0.0.0.0:8787", "192.168.1.5:80"} {
		if err := local.CheckListen(addr); !errors.Is(err, ErrPublicListen) {
			t.Errorf("CheckListen(%q) = %v, want ErrPublicListen", addr, err)
		}
	}
	if err := local.CheckListen("no-port"); err == nil {
		t.Error("expected error for address without port")
	}
}

func TestPolicy_Transport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: Policy{LocalOnly: true}.Transport(nil)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("loopback request blocked: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}

	_, err = client.Get("http://203.0.113.7/v1/models")
	if !errors.Is(err, ErrNonLocalhost) {
		t.Errorf("remote request: got %v, want ErrNonLocalhost", err)
	}
}
