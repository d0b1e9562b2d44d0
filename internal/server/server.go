// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/avendale/tutorhive/internal/activation"
	"github.com/avendale/tutorhive/internal/circuitbreaker"
	"github.com/avendale/tutorhive/internal/config"
	"github.com/avendale/tutorhive/internal/health"
	"github.com/avendale/tutorhive/internal/identity"
	"github.com/avendale/tutorhive/internal/logging"
	"github.com/avendale/tutorhive/internal/metrics"
	"github.com/avendale/tutorhive/internal/payment"
	"github.com/avendale/tutorhive/internal/provisioning"
	"github.com/avendale/tutorhive/internal/ratelimit"
	"github.com/avendale/tutorhive/internal/realtime"
	"github.com/avendale/tutorhive/internal/security"
	"github.com/avendale/tutorhive/internal/tenant"
	"github.com/avendale/tutorhive/internal/traces"
	"github.com/avendale/tutorhive/internal/validation"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	store        tenant.Store
	identity     identity.Provider
	gateway      payment.Gateway
	provisioning *provisioning.Service
	activation   *activation.Service
	hub          *realtime.Hub
	checks       *health.Registry
	rateLimiter  *ratelimit.Limiter
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	stopTracing  func(context.Context) error
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGateway sets a custom payment gateway (for testing)
func WithGateway(gw payment.Gateway) Option {
	return func(s *Server) {
		s.gateway = gw
	}
}

// WithIdentity sets a custom identity provider (for testing)
func WithIdentity(p identity.Provider) Option {
	return func(s *Server) {
		s.identity = p
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		checks: health.NewRegistry(),
	}

	// Apply options first (may set gateway/identity/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.store = tenant.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		s.checks.Register("database", health.Func("database", db.PingContext))
	} else {
		s.store = tenant.NewMemoryStore()
		s.logger.Warn("using in-memory storage, data will not survive restarts")
		s.checks.Register("database", func(context.Context) health.Status {
			return health.Status{Name: "database", Healthy: true, Detail: "in-memory"}
		})
	}

	// Identity provider (hosted service if configured, otherwise local)
	if s.identity == nil {
		if cfg.IdentityServiceURL != "" {
			s.identity = identity.NewClient(cfg.IdentityServiceURL, cfg.IdentityServiceToken)
			s.logger.Info("using hosted identity provider", "url", cfg.IdentityServiceURL)
		} else {
			s.identity = identity.NewLocal()
			s.logger.Warn("using in-memory identity provider")
		}
	}

	// Payment gateway (Stripe if configured, otherwise fake). The real
	// gateway sits behind a circuit breaker so an outage degrades fast.
	if s.gateway == nil {
		if cfg.StripeSecretKey != "" {
			s.gateway = payment.NewBreakerGateway(
				payment.NewStripeGateway(cfg.StripeSecretKey), 5, 30*time.Second)
			s.logger.Info("using Stripe payment gateway")
		} else {
			s.gateway = payment.NewMemoryGateway()
			s.logger.Warn("using in-memory payment gateway, no real charges")
		}
	}

	// A breaker-guarded gateway exposes its circuit to /health: an open
	// circuit means checkouts and activations are degraded right now.
	if bg, ok := s.gateway.(*payment.BreakerGateway); ok {
		s.checks.Register("payment_gateway", func(context.Context) health.Status {
			state := bg.State()
			return health.Status{
				Name:    "payment_gateway",
				Healthy: state != circuitbreaker.StateOpen,
				Detail:  "circuit " + state.String(),
			}
		})
	}

	// Realtime hub for dashboard events
	s.hub = realtime.NewHub(s.logger)

	// Services
	s.provisioning = provisioning.NewService(s.store, s.identity, s.hub, s.logger)
	s.activation = activation.NewService(s.store, s.gateway, s.hub, s.logger,
		cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)

	// Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// adminSecretMiddleware guards administrative endpoints with X-Admin-Secret.
// With no secret configured the endpoints are open in development and
// disabled everywhere else.
func (s *Server) adminSecretMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" {
			if s.cfg.IsDevelopment() {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "admin_disabled",
				"message": "Administrative endpoints are not configured",
			})
			return
		}

		got := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AdminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid admin secret",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket event stream
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	v1 := s.router.Group("/v1")

	provisioning.NewHandler(s.provisioning).RegisterRoutes(v1)

	activationHandler := activation.NewHandler(s.activation, s.store)
	activationHandler.RegisterRoutes(v1)

	admin := v1.Group("")
	admin.Use(s.adminSecretMiddleware())
	activationHandler.RegisterAdminRoutes(admin)
	admin.GET("/realtime/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.hub.Stats())
	})
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing
	stopTracing, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Error("failed to initialize tracing", "error", err)
	} else {
		s.stopTracing = stopTracing
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Realtime hub
	go s.hub.Run(runCtx)

	// Database metrics
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	if s.cfg.IsProduction() {
		time.Sleep(5 * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.stopTracing != nil {
		if err := s.stopTracing(ctx); err != nil {
			s.logger.Error("tracing shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Hub returns the realtime hub (for wiring and tests).
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

func generateRequestID() string {
	return uuid.NewString()
}
