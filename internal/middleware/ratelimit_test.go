package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_RejectsAfterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rl.Middleware(next)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	for _, key := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if !rl.allow(key) {
			t.Fatalf("first request from %s rejected", key)
		}
	}
	if len(rl.clients) != 3 {
		t.Fatalf("clients = %d, want 3", len(rl.clients))
	}

	now = now.Add(clientIdleTTL / 2)
	rl.allow("10.0.0.1")

	now = now.Add(clientIdleTTL / 2)
	rl.allow("10.0.0.4")

	if len(rl.clients) != 2 {
		t.Fatalf("clients after sweep = %d, want 2", len(rl.clients))
	}
	for _, key := range []string{"10.0.0.1", "10.0.0.4"} {
		if _, ok := rl.clients[key]; !ok {
			t.Fatalf("active client %s was evicted", key)
		}
	}
}
