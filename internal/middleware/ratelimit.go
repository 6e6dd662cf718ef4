// Package middleware provides HTTP middleware for the mitre-shield API.
package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mitre-shield/internal/config"
)

// RateLimiter tracks request counts per client IP over a fixed window,
// with a burst allowance on top of the base limit.
type RateLimiter struct {
	cfg         config.RateLimitConfig
	clients     map[string]*clientState
	mu          sync.RWMutex
	exemptPaths map[string]bool
	stopCleanup chan struct{}
	logger      *slog.Logger
}

type clientState struct {
	count     int64
	windowEnd time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}

	exemptPaths := make(map[string]bool)
	for _, path := range cfg.ExemptPaths {
		exemptPaths[path] = true
	}

	rl := &RateLimiter{
		cfg:         cfg,
		clients:     make(map[string]*clientState),
		exemptPaths: exemptPaths,
		stopCleanup: make(chan struct{}),
		logger:      logger,
	}

	go rl.cleanupLoop()

	return rl
}

// Allow checks whether a request from the given IP fits in its window.
// Returns (allowed, remaining requests, window reset time).
func (rl *RateLimiter) Allow(ip string) (bool, int, time.Time) {
	now := time.Now()

	rl.mu.Lock()
	client, exists := rl.clients[ip]
	if !exists {
		client = &clientState{windowEnd: now.Add(rl.cfg.WindowSize)}
		rl.clients[ip] = client
	}
	rl.mu.Unlock()

	client.mu.Lock()
	defer client.mu.Unlock()

	if now.After(client.windowEnd) {
		client.count = 0
		client.windowEnd = now.Add(rl.cfg.WindowSize)
	}

	limit := int64(rl.cfg.RequestsPerIP + rl.cfg.BurstSize)
	if client.count >= limit {
		return false, 0, client.windowEnd
	}

	client.count++
	remaining := limit - client.count
	return true, int(remaining), client.windowEnd
}

func (rl *RateLimiter) cleanupLoop() {
	period := rl.cfg.CleanupPeriod
	if period <= 0 {
		period = 5 * time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	// Keep entries for two windows so a client idling across a window
	// boundary is not forgotten and re-granted a fresh burst.
	expiredThreshold := time.Now().Add(-rl.cfg.WindowSize * 2)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, client := range rl.clients {
		client.mu.Lock()
		if client.windowEnd.Before(expiredThreshold) {
			delete(rl.clients, ip)
			removed++
		}
		client.mu.Unlock()
	}

	if removed > 0 {
		rl.logger.Debug("rate limiter cleanup", "removed", removed, "remaining", len(rl.clients))
	}
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}

// IsExempt checks if a path is exempt from rate limiting.
func (rl *RateLimiter) IsExempt(path string) bool {
	return rl.exemptPaths[path]
}

var (
	rateLimitedTotal uint64
	rateLimitAllowed uint64
)

// GetRateLimitMetrics returns the process-wide rate limit counters.
func GetRateLimitMetrics() (limited, allowed uint64) {
	return atomic.LoadUint64(&rateLimitedTotal), atomic.LoadUint64(&rateLimitAllowed)
}

// RateLimit creates middleware that applies per-IP rate limiting with
// standard X-RateLimit headers, returning 429 when the window is spent.
func RateLimit(cfg config.RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(cfg, logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || limiter.IsExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r, cfg.TrustProxy)
			allowed, remaining, resetTime := limiter.Allow(ip)

			limit := cfg.RequestsPerIP + cfg.BurstSize
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))

			if !allowed {
				atomic.AddUint64(&rateLimitedTotal, 1)

				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)

				retryAfter := int(time.Until(resetTime).Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"code":"RATE_LIMITED","message":"Too many requests. Please try again later.","retry_after":%d}`, retryAfter)
				return
			}

			atomic.AddUint64(&rateLimitAllowed, 1)
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP. With trustProxy set it honors
// X-Forwarded-For, using the rightmost entry since that one was written
// by the proxy closest to us and cannot be spoofed by the client.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				if ip := strings.TrimSpace(parts[i]); ip != "" {
					return ip
				}
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LoginRateLimiter applies per-username rate limiting on the login
// endpoint to slow brute-force attempts against specific accounts.
type LoginRateLimiter struct {
	attempts    map[string]*loginAttempt
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
}

type loginAttempt struct {
	count     int
	windowEnd time.Time
}

// NewLoginRateLimiter creates a per-username login rate limiter.
func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{
		attempts:    make(map[string]*loginAttempt),
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// AllowLogin checks if a login attempt for the username is allowed.
func (l *LoginRateLimiter) AllowLogin(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	attempt, exists := l.attempts[username]
	if !exists || now.After(attempt.windowEnd) {
		l.attempts[username] = &loginAttempt{count: 1, windowEnd: now.Add(l.window)}
		return true
	}

	if attempt.count >= l.maxAttempts {
		return false
	}

	attempt.count++
	return true
}

// CleanupLoginAttempts drops expired login windows.
func (l *LoginRateLimiter) CleanupLoginAttempts() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for username, attempt := range l.attempts {
		if now.After(attempt.windowEnd) {
			delete(l.attempts, username)
		}
	}
}
