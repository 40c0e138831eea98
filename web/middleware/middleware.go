// Package middleware provides HTTP middleware for the agent endpoints.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// AllowedHosts rejects requests whose Host header matches none of hosts with
// 406. An entry starting with a dot matches the domain and all its
// subdomains, "*" matches anything. An empty list allows every host.
func AllowedHosts(hosts []string) func(http.Handler) http.Handler {
	patterns := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			patterns = append(patterns, h)
		}
	}

	return func(next http.Handler) http.Handler {
		if len(patterns) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := requestHost(r)
			if !hostAllowed(host, patterns) {
				slog.Warn("Disallowed host",
					"layer", "middleware",
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
				http.Error(w, "Not Acceptable", http.StatusNotAcceptable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

func hostAllowed(host string, patterns []string) bool {
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case strings.HasPrefix(p, "."):
			if host == p[1:] || strings.HasSuffix(host, p) {
				return true
			}
		case host == p:
			return true
		}
	}
	return false
}

// DefaultLimiterIdleTTL is how long a client's bucket is kept after its last request.
const DefaultLimiterIdleTTL = 10 * time.Minute

// RateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than the idle TTL are dropped while new clients are added.
type RateLimiter struct {
	limiters  map[string]*clientLimiter
	mu        sync.RWMutex
	rps       float64
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	idleTTL := DefaultLimiterIdleTTL
	// A bucket idle this long is full again, so dropping it changes nothing
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idleTTL {
			idleTTL = refill
		}
	}
	return &RateLimiter{
		limiters:  make(map[string]*clientLimiter),
		rps:       rps,
		burst:     burst,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow reports whether a request from key may proceed.
func (l *RateLimiter) Allow(key string) bool {
	return l.getLimiter(key).limiter.Allow()
}

// Len returns the number of tracked clients.
func (l *RateLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

// Evict drops the buckets of clients idle for longer than the idle TTL and
// returns how many were dropped.
func (l *RateLimiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evictLocked(l.now())
}

func (l *RateLimiter) evictLocked(now time.Time) int {
	cutoff := now.Add(-l.idleTTL).UnixNano()
	evicted := 0
	for key, c := range l.limiters {
		if c.lastSeen.Load() < cutoff {
			delete(l.limiters, key)
			evicted++
		}
	}
	l.lastSweep = now
	return evicted
}

func (l *RateLimiter) getLimiter(key string) *clientLimiter {
	now := l.now()

	l.mu.RLock()
	c, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		c.lastSeen.Store(now.UnixNano())
		return c
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if c, exists = l.limiters[key]; exists {
		c.lastSeen.Store(now.UnixNano())
		return c
	}

	if now.Sub(l.lastSweep) >= l.idleTTL {
		if evicted := l.evictLocked(now); evicted > 0 {
			slog.Debug("Evicted idle rate limiters",
				"layer", "middleware",
				"evicted", evicted)
		}
	}

	c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
	c.lastSeen.Store(now.UnixNano())
	l.limiters[key] = c
	return c
}

// Middleware answers 429 once a client IP exceeds its rate. A non-positive
// rate disables limiting.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if h, _, err := net.SplitHostPort(ip); err == nil {
			ip = h
		}
		if !l.Allow(ip) {
			slog.Warn("Rate limit exceeded",
				"layer", "middleware",
				"remote_addr", ip,
				"path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"success":false,"error":"too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
