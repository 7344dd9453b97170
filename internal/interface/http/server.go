// Package http exposes the progression economy over a JSON REST API, plus
// health probes and the Prometheus metrics endpoint.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/alem-hub/lingua-hub/internal/application/command"
	"github.com/alem-hub/lingua-hub/internal/application/query"
	"github.com/alem-hub/lingua-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// AllowedOrigins - allowed origins for CORS. Empty disables CORS headers.
	AllowedOrigins []string

	// EnableMetrics - serve /metrics.
	EnableMetrics bool

	// RateLimit - requests per second per client IP (0 = disabled).
	RateLimit float64
	RateBurst int

	// APIKeyHeader - header carrying the API key for /api routes.
	APIKeyHeader string

	// APIKeyHashes - bcrypt hashes of accepted keys. Empty disables auth.
	APIKeyHashes []string

	// TrustedProxies - IPs or CIDRs allowed to set X-Forwarded-For and
	// X-Real-IP. Requests from any other peer are keyed by the TCP address.
	TrustedProxies []string

	// Version is reported by the health endpoint.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
		AllowedOrigins: []string{"*"},
		EnableMetrics:  true,
		RateLimit:      20,
		RateBurst:      40,
		APIKeyHeader:   "X-API-Key",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// RequestMetrics records per-request metrics and serves the scrape endpoint.
type RequestMetrics interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	Handler() http.Handler
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (write side)
	ProvisionEconomy *command.ProvisionEconomyHandler
	SpendHearts      *command.SpendHeartsHandler
	RefillHearts     *command.RefillHeartsHandler
	PurchasePowerUp  *command.PurchasePowerUpHandler
	RecordLesson     *command.RecordLessonHandler

	// Query Handlers (read side)
	GetEconomySnapshot *query.GetEconomySnapshotHandler
	GetDailyQuests     *query.GetDailyQuestsHandler
	GetCatalog         *query.GetCatalogHandler

	Logger *logger.Logger

	// HealthChecker backs /health and /ready. Nil reports healthy.
	HealthChecker HealthChecker

	// Metrics is optional.
	Metrics RequestMetrics
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	logger     *logger.Logger

	// Middleware state
	rateLimiter    *ipRateLimiter
	apiKeys        *apiKeyAuth
	trustedProxies []netip.Prefix

	// Server state
	mu        sync.RWMutex
	running   bool
	draining  bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	s := &Server{
		config:    config,
		deps:      deps,
		router:    http.NewServeMux(),
		logger:    deps.Logger,
		startedAt: time.Now(),
	}

	if s.logger == nil {
		s.logger = logger.Default()
	}
	if s.config.APIKeyHeader == "" {
		s.config.APIKeyHeader = "X-API-Key"
	}

	proxies, err := parseTrustedProxies(config.TrustedProxies)
	if err != nil {
		return nil, err
	}
	s.trustedProxies = proxies

	if config.RateLimit > 0 {
		rl, err := newIPRateLimiter(config.RateLimit, config.RateBurst, defaultLimiterCacheSize)
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		s.rateLimiter = rl
	}

	if len(config.APIKeyHashes) > 0 {
		auth, err := newAPIKeyAuth(config.APIKeyHashes, defaultVerifiedKeyCacheSize)
		if err != nil {
			return nil, fmt.Errorf("api key auth: %w", err)
		}
		s.apiKeys = auth
	}

	s.setupRoutes()
	s.handler = s.buildMiddlewareChain(s.router)

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.handler,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Economy
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /api/v1/users/{id}/economy", s.handleProvisionEconomy)
	s.router.HandleFunc("GET /api/v1/users/{id}/economy", s.handleGetEconomy)
	s.router.HandleFunc("POST /api/v1/users/{id}/hearts/spend", s.handleSpendHearts)
	s.router.HandleFunc("POST /api/v1/users/{id}/hearts/refill", s.handleRefillHearts)
	s.router.HandleFunc("POST /api/v1/users/{id}/powerups/{type}", s.handlePurchasePowerUp)
	s.router.HandleFunc("POST /api/v1/users/{id}/lessons/complete", s.handleCompleteLesson)
	s.router.HandleFunc("GET /api/v1/users/{id}/quests", s.handleGetQuests)
	s.router.HandleFunc("GET /api/v1/catalog", s.handleGetCatalog)

	// ─────────────────────────────────────────────────────────────────────────
	// Metrics (if enabled)
	// ─────────────────────────────────────────────────────────────────────────
	if s.config.EnableMetrics && s.deps.Metrics != nil {
		s.router.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain wraps the router with all middleware. The last
// wrapper applied runs first.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	h := s.captureRouteMiddleware(handler)

	if s.apiKeys != nil {
		h = s.apiKeyMiddleware(h)
	}

	if s.rateLimiter != nil {
		h = s.rateLimitMiddleware(h)
	}

	h = s.recoveryMiddleware(h)

	if len(s.config.AllowedOrigins) > 0 {
		h = s.corsMiddleware(h)
	}

	h = s.loggingMiddleware(h)

	if s.deps.Metrics != nil {
		h = s.metricsMiddleware(h)
	}

	h = s.requestIDMiddleware(h)

	return h
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Handler returns the fully wrapped handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown marks the server not ready and gracefully shuts it down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsDraining reports whether Shutdown has been called.
func (s *Server) IsDraining() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draining
}

// Uptime returns time since the server was created or started.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startedAt)
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.config.Address()
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	response := JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta: &ResponseMeta{
			Timestamp: time.Now().UTC(),
			Version:   "v1",
		},
		RequestID: getRequestID(r.Context()),
	}

	_ = json.NewEncoder(w).Encode(response)
}

// writeJSONError writes an error JSON response.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	response := JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &ResponseMeta{
			Timestamp: time.Now().UTC(),
		},
		RequestID: getRequestID(r.Context()),
	}

	_ = json.NewEncoder(w).Encode(response)
}
