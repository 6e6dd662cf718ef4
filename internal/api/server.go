package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"mitre-shield/internal/api/auth"
	"mitre-shield/internal/config"
	"mitre-shield/internal/filestore"
	"mitre-shield/internal/importer"
	"mitre-shield/internal/middleware"
	"mitre-shield/internal/schema"
	"mitre-shield/internal/storage"
	"mitre-shield/internal/validation"
)

// Pinger is implemented by storage backends that can be health-checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries the wired backends for the API server. Sessions may be
// nil when auth is disabled; Pinger may be nil when the server runs
// against in-memory storage.
type Deps struct {
	Rules      storage.RuleStore
	Techniques storage.TechniqueStore
	Files      filestore.Store
	Sessions   *auth.Manager
	Pinger     Pinger
}

// Server is the mitre-shield HTTP API.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	rules      storage.RuleStore
	techniques storage.TechniqueStore
	files      filestore.Store
	sessions   *auth.Manager
	pinger     Pinger

	extractor  *importer.Extractor
	validator  *validation.Validator
	ruleSchema *schema.Validator

	loginLimiter *middleware.LoginRateLimiter

	startTime     time.Time
	requestCount  atomic.Uint64
	importCount   atomic.Uint64
	rulesIngested atomic.Uint64
}

// NewServer wires the API server. The validation vocabulary picks up
// any extra platforms from the config.
func NewServer(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	vocab := schema.DefaultVocabulary().WithExtraPlatforms(cfg.Validation.ExtraPlatforms...)

	return &Server{
		cfg:          cfg,
		logger:       logger,
		rules:        deps.Rules,
		techniques:   deps.Techniques,
		files:        deps.Files,
		sessions:     deps.Sessions,
		pinger:       deps.Pinger,
		extractor:    importer.NewExtractor(vocab),
		validator:    validation.NewWithVocabulary(vocab),
		ruleSchema:   schema.NewValidatorWithVocabulary(vocab),
		loginLimiter: middleware.NewLoginRateLimiter(5, 15*time.Minute),
		startTime:    time.Now(),
	}
}

// Routes builds the full handler chain: mux, middleware, auth guard.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)

	mux.HandleFunc("GET /api/rules", s.handleListRules)
	mux.HandleFunc("POST /api/rules", s.handleCreateRule)
	mux.HandleFunc("GET /api/rules/template", s.handleRuleTemplate)
	mux.HandleFunc("GET /api/rules/{id}", s.handleGetRule)
	mux.HandleFunc("PUT /api/rules/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", s.handleDeleteRule)
	mux.HandleFunc("POST /api/rules/bulk", s.handleBulkCreate)

	mux.HandleFunc("GET /api/techniques", s.handleListTechniques)

	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/extract-data", s.handleExtractData)

	var handler http.Handler = mux
	handler = s.requireSession(handler)
	handler = s.logRequests(handler)
	if s.cfg.RateLimit.Enabled {
		handler = middleware.RateLimit(s.cfg.RateLimit, s.logger)(handler)
	}
	if s.cfg.CORS.Enabled {
		handler = middleware.CORS(s.cfg.CORS)(handler)
	}
	handler = middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(), s.logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}

// openPaths are reachable without a session even when auth is enabled.
var openPaths = map[string]bool{
	"/health":         true,
	"/metrics":        true,
	"/api/auth/login": true,
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessions == nil || openPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		session, err := s.sessions.Validate(r.Context(), bearerToken(r))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type sessionContextKey struct{}

func sessionFromContext(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionContextKey{}).(*auth.Session)
	return session
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requestCount.Add(1)
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetRequestID(r.Context()))
	})
}
