// Package http implements the rental desk REST API: the period table and
// due estimate shown at intake, item registry administration, and the
// checkout and return endpoints used by desk staff.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/classup/rental-desk/internal/application/command"
	"github.com/classup/rental-desk/internal/application/query"
	"github.com/classup/rental-desk/internal/interface/http/handlers"
	"github.com/classup/rental-desk/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the listener, limits and access settings of the desk API.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds each request context, lock waits included.
	RequestTimeout time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int64

	// CORS for the student request form, which is served from another origin.
	EnableCORS     bool
	AllowedOrigins []string

	// RateLimitPerMinute is a per-client token bucket refill rate; the burst
	// equals one minute's worth. Zero disables limiting.
	RateLimitPerMinute int

	// APIKeyHeader carries the desk staff key; Bearer tokens work too.
	APIKeyHeader string

	// AdminKeyHashes are bcrypt hashes of the keys accepted on staff routes.
	// With none configured, staff routes are open.
	AdminKeyHashes []string
}

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        90 * time.Second,
		RequestTimeout:     10 * time.Second,
		MaxHeaderBytes:     32 << 10,
		MaxBodyBytes:       64 << 10,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
		APIKeyHeader:       "X-API-Key",
	}
}

// Address is the host:port the server listens on.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies are the application handlers the routes delegate to.
type Dependencies struct {
	// Commands
	CreateItemHandler   *command.CreateItemHandler
	UpdateItemHandler   *command.UpdateItemHandler
	DeleteItemHandler   *command.DeleteItemHandler
	CheckoutItemHandler *command.CheckoutItemHandler
	ReturnItemHandler   *command.ReturnItemHandler

	// Queries
	ListItemsHandler          *query.ListItemsHandler
	GetItemHandler            *query.GetItemHandler
	GetActiveRentalsHandler   *query.GetActiveRentalsHandler
	GetOverdueRentalsHandler  *query.GetOverdueRentalsHandler
	GetBorrowerHistoryHandler *query.GetBorrowerHistoryHandler
	GetDueEstimateHandler     *query.GetDueEstimateHandler
	GetPeriodTableHandler     *query.GetPeriodTableHandler

	Logger *logger.Logger

	// HealthChecker backs /health and /ready; nil reports healthy.
	HealthChecker handlers.HealthChecker

	// Now overrides the clock used when a request carries no instant.
	Now func() time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server serves the desk API.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	logger     *logger.Logger
	validate   *validator.Validate
	auth       *handlers.APIKeyAuth

	rateLimiter *rateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer wires routes and middleware. The listener opens in Start.
func NewServer(cfg Config, deps Dependencies) *Server {
	s := &Server{
		config:   cfg,
		deps:     deps,
		router:   http.NewServeMux(),
		logger:   deps.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		auth:     handlers.NewAPIKeyAuth(cfg.APIKeyHeader, cfg.AdminKeyHashes),
	}

	if s.logger == nil {
		s.logger = logger.Default()
	}
	if s.deps.Now == nil {
		s.deps.Now = time.Now
	}
	if !s.auth.Enabled() {
		s.logger.Warn("no admin API keys configured, admin routes are open")
	}

	if n := cfg.RateLimitPerMinute; n > 0 {
		s.rateLimiter = newRateLimiter(n, time.Minute)
	}

	s.setupRoutes()
	s.handler = s.buildMiddlewareChain(s.router)

	s.httpServer = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes registers every route. Reads are public, writes need a staff key.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /{$}", s.handleRoot)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Public Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/periods", s.handleGetPeriods)
	s.router.HandleFunc("GET /api/v1/periods/estimate", s.handleGetDueEstimate)
	s.router.HandleFunc("GET /api/v1/items", s.handleListItems)
	s.router.HandleFunc("GET /api/v1/items/{id}", s.handleGetItem)
	s.router.HandleFunc("GET /api/v1/rentals/active", s.handleGetActiveRentals)
	s.router.HandleFunc("GET /api/v1/rentals/overdue", s.handleGetOverdueRentals)
	s.router.HandleFunc("GET /api/v1/borrowers/{id}/rentals", s.handleGetBorrowerHistory)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1 - Desk Staff Endpoints (API key)
	// ─────────────────────────────────────────────────────────────────────────
	s.router.Handle("POST /api/v1/items", s.admin(s.handleCreateItem))
	s.router.Handle("PUT /api/v1/items/{id}", s.admin(s.handleUpdateItem))
	s.router.Handle("DELETE /api/v1/items/{id}", s.admin(s.handleDeleteItem))
	s.router.Handle("POST /api/v1/rentals", s.admin(s.handleCheckout))
	s.router.Handle("PUT /api/v1/rentals/{id}/return", s.admin(s.handleReturn))
}

// admin wraps a handler with API key authentication when keys are configured.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	if !s.auth.Enabled() {
		return h
	}
	return s.auth.Middleware(h)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain wraps the router. Each layer added below wraps the
// ones before it, so rate limiting runs first.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	h := handlers.Chain(
		handlers.SecurityHeadersMiddleware,
		handlers.NoCacheMiddleware,
		handlers.RequestSizeLimitMiddleware(s.bodyLimit()),
		handlers.TimeoutMiddleware(s.requestTimeout()),
	)(handler)

	h = s.requestIDMiddleware(h)
	h = s.loggingMiddleware(h)

	// Panics from any inner layer become a 500.
	h = s.recoveryMiddleware(h)

	if s.config.EnableCORS {
		h = s.corsMiddleware(h)
	}
	if s.rateLimiter != nil {
		h = s.rateLimitMiddleware(h)
	}
	return h
}

func (s *Server) bodyLimit() int64 {
	if s.config.MaxBodyBytes > 0 {
		return s.config.MaxBodyBytes
	}
	return 64 << 10
}

func (s *Server) requestTimeout() time.Duration {
	if s.config.RequestTimeout > 0 {
		return s.config.RequestTimeout
	}
	return 10 * time.Second
}

// requestIDMiddleware propagates X-Request-ID, minting one when absent, and
// stores a request-scoped logger in the context.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware writes one access line per request. Server errors log
// at error level, client errors at warn.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("route", r.Pattern),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Latency(time.Since(start)),
			logger.String("client", clientIP(r)),
			logger.String("request_id", rec.Header().Get(headerRequestID)),
		}
		switch {
		case rec.status >= 500:
			s.logger.Error("http request", fields...)
		case rec.status >= 400:
			s.logger.Warn("http request", fields...)
		default:
			s.logger.Info("http request", fields...)
		}
	})
}

// recoveryMiddleware turns a handler panic into a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == http.ErrAbortHandler {
				panic(rv)
			}
			s.logger.Error("handler panic",
				logger.Any("panic", rv),
				logger.String("path", r.URL.Path),
				logger.String("stack", string(debug.Stack())),
			)
			writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers preflights and sets CORS headers for the allowed
// origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.config.AllowedOrigins, "*")
	allowHeaders := strings.Join([]string{"Content-Type", "Authorization", s.config.APIKeyHeader, headerRequestID}, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(s.config.AllowedOrigins, origin)) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Expose-Headers", headerRequestID+", Retry-After")
			h.Set("Access-Control-Max-Age", "600")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware rejects clients that exhausted their bucket.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(s.rateLimiter.RetryAfterSeconds()))
			writeJSONError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many requests, try again shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// ErrServerRunning is returned by Start on a server that is already serving.
var ErrServerRunning = errors.New("http server already running")

// Start listens and serves until Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerRunning
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("http listener starting", logger.String("address", s.config.Address()))

	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.config.Address(), err)
	}
	return nil
}

// StartAsync runs Start in the background. The channel yields at most one
// error and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	s.logger.Info("http listener stopping")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime is zero before Start and after Shutdown.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address is the configured listen address.
func (s *Server) Address() string {
	return s.config.Address()
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError carries a machine-readable code and a message for the desk UI.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta is attached to successful responses; TotalCount is set on lists.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSONWithMeta(w, r, status, data, nil)
}

func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data interface{}, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	encode(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
}

// writeJSONError writes a failed envelope with the given status and code.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSONErrorWithDetails(w, r, status, code, message, "")
}

func writeJSONErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	encode(w, status, JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: getRequestID(r.Context()),
	})
}

func encode(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

const headerRequestID = "X-Request-ID"

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// statusRecorder remembers the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// clientIP is the first X-Forwarded-For hop, then X-Real-IP, then the peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// getQueryParamInt returns the integer value of key, or def when the
// parameter is missing or malformed.
func getQueryParamInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return n
}

// getQueryParamBool accepts anything strconv.ParseBool does, plus "yes".
func getQueryParamBool(r *http.Request, key string) bool {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if strings.EqualFold(v, "yes") {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// rateLimiter keeps one token bucket per client key. Buckets idle for
// longer than a few windows are evicted.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	every   rate.Limit
	burst   int
	window  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter allows limit requests per window per key, refilled evenly.
func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		clients: make(map[string]*clientBucket),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		window:  window,
		stop:    make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Allow takes a token from key's bucket.
func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	b, ok := rl.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.clients[key] = b
	}
	b.lastSeen = time.Now()
	rl.mu.Unlock()

	return b.limiter.Allow()
}

// RetryAfterSeconds is how long one token takes to refill, rounded up.
func (rl *rateLimiter) RetryAfterSeconds() int {
	per := time.Duration(float64(time.Second) / float64(rl.every))
	return int(max(1, (per+time.Second-1)/time.Second))
}

// Stop ends the eviction goroutine.
func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *rateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.clients {
				if now.Sub(b.lastSeen) > 3*rl.window {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}
