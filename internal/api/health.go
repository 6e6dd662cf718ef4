package api

import (
	"fmt"
	"net/http"
	"time"

	"mitre-shield/internal/middleware"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	storageStatus := "ok"
	code := http.StatusOK

	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("storage health check failed", "error", err)
			status = "degraded"
			storageStatus = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, code, map[string]any{
		"status":         status,
		"storage":        storageStatus,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// handleMetrics exposes counters in Prometheus text format. Collection
// is cheap enough that no metrics library is needed.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP shield_http_requests_total Total HTTP requests handled.\n")
	fmt.Fprintf(w, "# TYPE shield_http_requests_total counter\n")
	fmt.Fprintf(w, "shield_http_requests_total %d\n", s.requestCount.Load())

	fmt.Fprintf(w, "# HELP shield_bulk_imports_total Bulk import requests received.\n")
	fmt.Fprintf(w, "# TYPE shield_bulk_imports_total counter\n")
	fmt.Fprintf(w, "shield_bulk_imports_total %d\n", s.importCount.Load())

	fmt.Fprintf(w, "# HELP shield_rules_ingested_total Rules written through bulk imports.\n")
	fmt.Fprintf(w, "# TYPE shield_rules_ingested_total counter\n")
	fmt.Fprintf(w, "shield_rules_ingested_total %d\n", s.rulesIngested.Load())

	limited, allowed := middleware.GetRateLimitMetrics()
	fmt.Fprintf(w, "# HELP shield_ratelimit_requests_total Requests seen by the rate limiter.\n")
	fmt.Fprintf(w, "# TYPE shield_ratelimit_requests_total counter\n")
	fmt.Fprintf(w, "shield_ratelimit_requests_total{outcome=\"allowed\"} %d\n", allowed)
	fmt.Fprintf(w, "shield_ratelimit_requests_total{outcome=\"limited\"} %d\n", limited)

	if rules, err := s.rules.Count(r.Context()); err == nil {
		fmt.Fprintf(w, "# HELP shield_rules_total Detection rules currently stored.\n")
		fmt.Fprintf(w, "# TYPE shield_rules_total gauge\n")
		fmt.Fprintf(w, "shield_rules_total %d\n", rules)
	}
	if techniques, err := s.techniques.Count(r.Context()); err == nil {
		fmt.Fprintf(w, "# HELP shield_techniques_total MITRE techniques currently stored.\n")
		fmt.Fprintf(w, "# TYPE shield_techniques_total gauge\n")
		fmt.Fprintf(w, "shield_techniques_total %d\n", techniques)
	}

	fmt.Fprintf(w, "# HELP shield_uptime_seconds Seconds since the server started.\n")
	fmt.Fprintf(w, "# TYPE shield_uptime_seconds gauge\n")
	fmt.Fprintf(w, "shield_uptime_seconds %d\n", int64(time.Since(s.startTime).Seconds()))
}
