package routing

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestRateLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(rate.Limit(1), 1)

	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")

	// nothing is dropped while clients are active
	rl.cleanup(time.Now())
	if len(rl.limiters) != 2 {
		t.Fatalf("expected 2 limiters, got %d", len(rl.limiters))
	}

	// quiet clients are forgotten
	rl.cleanup(time.Now().Add(limiterIdle + time.Second))
	if len(rl.limiters) != 0 {
		t.Fatalf("expected 0 limiters, got %d", len(rl.limiters))
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	if ip := clientIP(r); ip != "192.0.2.1" {
		t.Fatalf("expected connection address, got %s", ip)
	}

	r.RemoteAddr = "bare"
	if ip := clientIP(r); ip != "bare" {
		t.Fatalf("expected raw address, got %s", ip)
	}
}
