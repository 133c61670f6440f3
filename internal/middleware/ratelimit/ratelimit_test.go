package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(t *testing.T, rpm int) (*Limiter, *fakeClock) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: rpm, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	clock := &fakeClock{t: time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock
}

func TestLimiter_AllowWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 2)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request in the window should be rejected")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients are counted separately")
	}

	clock.t = clock.t.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("a new window should reset the counter")
	}
	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 5)
	rl.Allow("old")
	clock.t = clock.t.Add(11 * time.Minute)
	rl.Allow("new")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Errorf("active clients = %d, want 1", rl.ActiveClients())
	}
}

func TestLimiter_MiddlewareOnlyCountsPOST(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	ip := func(*http.Request) string { return "1.2.3.4" }
	h := rl.Middleware(ip, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("GET %d status = %d", i, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("first POST status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("missing Retry-After header")
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
	if rl.requestsPerMinute != DefaultConfig().RequestsPerMinute || !rl.Limits(http.MethodPost) {
		t.Errorf("defaults not applied: rpm=%d", rl.requestsPerMinute)
	}
}
