package ratelimiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetClientIP(t *testing.T) {
	rl := NewIPRateLimiter(1, time.Minute, CleanupOpts{TTL: time.Minute, Interval: time.Minute})
	defer rl.Stop()

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       ipAddr
	}{
		{"remote_addr", "10.0.0.1:5555", "", "10.0.0.1"},
		{"forwarded_last_hop", "10.0.0.1:5555", "1.1.1.1, 2.2.2.2", "2.2.2.2"},
		{"invalid_remote_addr", "garbage", "", "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, rl.GetClientIP(req))
		})
	}
}

func TestMiddleware(t *testing.T) {
	rl := NewIPRateLimiter(2, time.Minute, CleanupOpts{TTL: time.Minute, Interval: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(htmx bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/account/login", nil)
		req.RemoteAddr = "192.0.2.7:1234"
		if htmx {
			req.Header.Set("HX-Request", "true")
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do(false).Code)
	assert.Equal(t, http.StatusOK, do(false).Code)

	rec := do(false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many requests")
	assert.Contains(t, rec.Body.String(), `id="error"`)
}

func TestEvict(t *testing.T) {
	rl := NewIPRateLimiter(1, time.Minute, CleanupOpts{TTL: time.Minute, Interval: time.Hour})
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))

	now = now.Add(2 * time.Minute)
	rl.evict()

	rl.mu.Lock()
	_, ok := rl.limiters["1.2.3.4"]
	rl.mu.Unlock()
	assert.False(t, ok)
}
