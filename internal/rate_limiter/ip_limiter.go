// Package ratelimiter limits requests per client IP.
package ratelimiter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/johndosdos/astrochat/internal/view"
)

const tooManyRequests = "Too many requests. Try again later."

// CleanupOpts controls how long an idle IP keeps its bucket.
type CleanupOpts struct {
	TTL      time.Duration
	Interval time.Duration
}

type ipAddr string

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	limiters map[ipAddr]*rate.Limiter
	lastSeen map[ipAddr]time.Time
	mu       sync.Mutex
	cancel   context.CancelFunc
	rate     rate.Limit
	burst    int
	now      func() time.Time
	CleanupOpts
}

// NewIPRateLimiter allows requests per window for every IP. Idle buckets are
// dropped in the background until Stop is called.
func NewIPRateLimiter(requests int, window time.Duration, cleanupOpts CleanupOpts) *IPRateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &IPRateLimiter{
		limiters:    make(map[ipAddr]*rate.Limiter),
		lastSeen:    make(map[ipAddr]time.Time),
		cancel:      cancel,
		rate:        rate.Every(window / time.Duration(requests)),
		burst:       requests,
		now:         time.Now,
		CleanupOpts: cleanupOpts,
	}

	go rl.cleanup(ctx)

	return rl
}

// Stop ends the background cleanup.
func (rl *IPRateLimiter) Stop() {
	rl.cancel()
}

func (rl *IPRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *IPRateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, ls := range rl.lastSeen {
		if now.Sub(ls) > rl.TTL {
			delete(rl.limiters, ip)
			delete(rl.lastSeen, ip)
		}
	}
}

// GetClientIP trusts the last X-Forwarded-For hop, the one appended by our
// own proxy, and falls back to the remote address.
func (rl *IPRateLimiter) GetClientIP(r *http.Request) ipAddr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return ipAddr(strings.TrimSpace(ips[len(ips)-1]))
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		//nolint:gosec
		slog.Warn("invalid argument for net.SplitHostPort()",
			slog.String("remote_addr", r.RemoteAddr))
		return ipAddr(r.RemoteAddr)
	}

	return ipAddr(host)
}

func (rl *IPRateLimiter) Allow(ip ipAddr) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.limiters[ip]
	if !ok {
		bucket = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[ip] = bucket
	}

	rl.lastSeen[ip] = rl.now()
	return bucket.Allow()
}

// Middleware refuses requests over the limit. htmx requests get the inline
// error fragment so the form can show it.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.GetClientIP(r)

		if rl.Allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		slog.WarnContext(r.Context(), "rate limit exceeded",
			"ip", ip,
			"path", r.URL.Path,
			"method", r.Method)

		if r.Header.Get("HX-Request") == "true" {
			if err := view.ErrorMsg(tooManyRequests).Render(r.Context(), w); err != nil {
				slog.ErrorContext(r.Context(), "failed to render error component",
					"error", err,
					"ip", ip)
			}
			return
		}

		http.Error(w, tooManyRequests, http.StatusTooManyRequests)
	})
}
