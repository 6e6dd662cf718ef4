package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mitre-shield/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterAllow(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:       true,
		RequestsPerIP: 2,
		BurstSize:     1,
		WindowSize:    time.Minute,
		CleanupPeriod: time.Minute,
	}
	rl := NewRateLimiter(cfg, discardLogger())
	defer rl.Stop()

	// Limit is base + burst = 3.
	for i := 0; i < 3; i++ {
		allowed, _, _ := rl.Allow("10.0.0.1")
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if allowed, _, _ := rl.Allow("10.0.0.1"); allowed {
		t.Error("request over limit should be blocked")
	}

	// A different IP has its own window.
	if allowed, _, _ := rl.Allow("10.0.0.2"); !allowed {
		t.Error("separate IP should not share the window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:       true,
		RequestsPerIP: 1,
		BurstSize:     0,
		WindowSize:    time.Minute,
		CleanupPeriod: time.Minute,
		ExemptPaths:   []string{"/health"},
	}
	handler := RateLimit(cfg, discardLogger())(okHandler())

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:4567"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("/api/rules"); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := do("/api/rules")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}

	// Exempt paths bypass the limiter entirely.
	if rec := do("/health"); rec.Code != http.StatusOK {
		t.Errorf("exempt path status = %d", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		trustProxy bool
		want       string
	}{
		{"remote addr only", "192.168.1.5:1234", "", false, "192.168.1.5"},
		{"xff ignored without trust", "192.168.1.5:1234", "1.2.3.4", false, "192.168.1.5"},
		{"xff rightmost wins", "192.168.1.5:1234", "1.2.3.4, 5.6.7.8", true, "5.6.7.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := getClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginRateLimiter(t *testing.T) {
	l := NewLoginRateLimiter(2, time.Minute)

	if !l.AllowLogin("admin") || !l.AllowLogin("admin") {
		t.Fatal("first attempts should be allowed")
	}
	if l.AllowLogin("admin") {
		t.Error("third attempt should be blocked")
	}
	if !l.AllowLogin("analyst") {
		t.Error("other usernames are unaffected")
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(DefaultSecurityHeadersConfig(), discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	checks := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
	}
	for header, want := range checks {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://shield.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}
	handler := CORS(cfg)(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
		req.Header.Set("Origin", "https://shield.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shield.example.com" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("disallowed origin got Allow-Origin = %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/rules", nil)
		req.Header.Set("Origin", "https://shield.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
			t.Errorf("Allow-Methods = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
			t.Errorf("Max-Age = %q", got)
		}
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" {
			t.Fatal("request ID not set in context")
		}
		if rec.Header().Get("X-Request-ID") != seen {
			t.Error("header and context ID differ")
		}
	})

	t.Run("preserved", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "upstream-id")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if seen != "upstream-id" {
			t.Errorf("incoming ID not preserved: %q", seen)
		}
	})
}
