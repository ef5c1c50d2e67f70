package server

import (
	"net/http"
	"testing"
)

func Test_RateLimit_ExceededReturns429(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, newMemStore(), nil, &Config{RateLimit: 0.001, RateBurst: 1})

	if rec := do(s, http.MethodGet, "/search?query=go", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d", rec.Code)
	}
	rec := do(s, http.MethodGet, "/search?query=go", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After: got %q", got)
	}
}

func Test_RateLimit_PerIP(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, newMemStore(), nil, &Config{RateLimit: 0.001, RateBurst: 1})

	do(s, http.MethodGet, "/search?query=go", nil)

	// A different client IP gets its own bucket.
	rec := do(s, http.MethodGet, "/search?query=go", nil, func(r *http.Request) {
		r.RemoteAddr = "198.51.100.7:4242"
	})
	if rec.Code != http.StatusOK {
		t.Errorf("other IP: got %d", rec.Code)
	}
}

func Test_RateLimit_MonitoringEndpointsExempt(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, newMemStore(), nil, &Config{RateLimit: 0.001, RateBurst: 1})

	for range 5 {
		if rec := do(s, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
			t.Fatalf("health: got %d", rec.Code)
		}
	}
}

func Test_ClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		addr string
		want string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[::1]:8080", "[::1]"},
		{"unix", "unix"},
	}
	for _, tc := range cases {
		r := &http.Request{RemoteAddr: tc.addr}
		if got := clientIP(r); got != tc.want {
			t.Errorf("clientIP(%q) = %q, want %q", tc.addr, got, tc.want)
		}
	}
}
