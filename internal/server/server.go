// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
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
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/fraudscore/internal/circuitbreaker"
	"github.com/mbd888/fraudscore/internal/config"
	"github.com/mbd888/fraudscore/internal/feature"
	"github.com/mbd888/fraudscore/internal/health"
	"github.com/mbd888/fraudscore/internal/idgen"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/metrics"
	"github.com/mbd888/fraudscore/internal/model"
	"github.com/mbd888/fraudscore/internal/predictions"
	"github.com/mbd888/fraudscore/internal/ratelimit"
	"github.com/mbd888/fraudscore/internal/realtime"
	"github.com/mbd888/fraudscore/internal/registry"
	"github.com/mbd888/fraudscore/internal/retry"
	"github.com/mbd888/fraudscore/internal/scoring"
	"github.com/mbd888/fraudscore/internal/security"
	"github.com/mbd888/fraudscore/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	handle       *model.Handle
	engine       *scoring.Engine
	store        predictions.Store
	registry     *registry.MemoryRegistry
	realtimeHub  *realtime.Hub
	checks       *health.Registry
	rateLimiter  *ratelimit.Limiter
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
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

// WithClassifier preloads a classifier (for testing)
func WithClassifier(c model.Classifier) Option {
	return func(s *Server) {
		s.handle.Swap(c)
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		handle: model.NewHandle(),
		logger: logging.New(cfg.LogLevel, "json"),
		checks: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
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
		store := predictions.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate predictions store", "error", err)
		}
		s.store = store
		s.checks.Register("database", health.DatabaseChecker(db))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.store = predictions.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Card registry, with Stripe enrichment when a key is configured
	var enricher registry.Enricher
	if cfg.StripeSecretKey != "" {
		enricher = registry.NewStripeEnricher(cfg.StripeSecretKey)
		s.logger.Info("card enrichment enabled")
	}
	s.registry = registry.NewMemoryRegistry(enricher)

	// Load a classifier unless one was injected via options
	if !s.handle.Ready() {
		clf, err := s.loadClassifier()
		if err != nil {
			return nil, fmt.Errorf("failed to load classifier: %w", err)
		}
		if clf != nil {
			s.handle.Swap(clf)
			info, _ := s.handle.Info()
			s.logger.Info("classifier loaded",
				"version", info.Version,
				"kind", info.Kind,
				"features", info.FeatureCount,
			)
		} else {
			s.logger.Warn("no classifier configured, scoring returns 503 until one is loaded")
		}
	}
	s.checks.Register("model", health.ModelChecker(s.handle.Ready))

	// Scoring engine
	s.engine = scoring.NewEngine(s.handle,
		scoring.WithThresholds(scoring.Thresholds{
			LowMax:  cfg.RiskLowMax,
			HighMax: cfg.RiskHighMax,
		}),
		scoring.WithCardSource(s.registry),
	)

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// loadClassifier builds a classifier from config. Returns nil when neither a
// model path nor a remote URL is configured.
func (s *Server) loadClassifier() (model.Classifier, error) {
	switch {
	case s.cfg.ModelPath != "":
		return model.LoadArtifact(s.cfg.ModelPath)
	case s.cfg.ClassifierURL != "":
		breaker := circuitbreaker.New(s.cfg.BreakerThreshold, s.cfg.BreakerCooldown)
		return model.NewRemote(s.cfg.ClassifierURL, feature.DefaultColumns(), s.cfg.ClassifierTimeout, breaker), nil
	default:
		return nil, nil
	}
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
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
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

	// CORS (allow all origins; restrict via a fronting proxy in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerSecond: s.cfg.RateLimitRPS,
	})
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

		// Log level based on status code
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

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Service info
	s.router.GET("/", s.infoHandler)

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})
	s.router.GET("/ws/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.realtimeHub.Stats())
	})

	// API group
	api := s.router.Group("/api")

	sink := &resultSink{
		store:    s.store,
		registry: s.registry,
		hub:      s.realtimeHub,
		logger:   s.logger,
	}
	reload := func() (model.Classifier, error) {
		clf, err := s.loadClassifier()
		if err != nil {
			return nil, err
		}
		if clf == nil {
			return nil, errors.New("no model source configured")
		}
		return clf, nil
	}
	scoringHandler := scoring.NewHandler(s.engine, sink, reload)
	scoringHandler.RegisterRoutes(api)

	predictionsHandler := predictions.NewHandler(s.store)
	predictionsHandler.RegisterRoutes(api)

	registryHandler := registry.NewHandler(s.registry)
	registryHandler.RegisterRoutes(api)
}

// -----------------------------------------------------------------------------
// Result sink
// -----------------------------------------------------------------------------

// resultSink fans a completed scoring decision out to persistence, the card
// registry, and WebSocket clients. Runs off the request path.
type resultSink struct {
	store    predictions.Store
	registry *registry.MemoryRegistry
	hub      *realtime.Hub
	logger   *slog.Logger
}

func (k *resultSink) Published(txn feature.Transaction, res scoring.Result) {
	rec := predictions.Record{
		ID:             idgen.WithPrefix("pred_"),
		TransactionID:  res.TransactionID,
		User:           txn.User,
		Card:           txn.Card,
		Amount:         txn.Amount,
		Merchant:       txn.Merchant,
		MerchantCity:   txn.City,
		MerchantState:  txn.State,
		MCC:            txn.MCC,
		IsFraud:        res.IsFraud,
		Probability:    res.Probability,
		RiskLevel:      string(res.RiskLevel),
		Recommendation: string(res.Recommendation),
		ModelVersion:   res.ModelVersion,
		LatencyMS:      res.LatencyMS,
		ScoredAt:       res.ScoredAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Transient store failures get retried; the scoring response has already
	// been sent, so latency here is invisible to the caller.
	err := retry.Do(ctx, 3, 100*time.Millisecond, func() error {
		return k.store.Save(ctx, &rec)
	})
	if err != nil {
		k.logger.Error("failed to persist prediction",
			"transaction_id", res.TransactionID,
			"error", err,
		)
	}

	k.registry.Observe(txn.Card)

	k.hub.BroadcastTransaction(rec)

	if res.Probability >= 0.5 {
		k.hub.BroadcastAlert(realtime.Alert{
			ID:            idgen.WithPrefix("alert_"),
			TransactionID: res.TransactionID,
			User:          txn.User,
			Card:          txn.Card,
			Amount:        txn.Amount,
			Merchant:      txn.Merchant,
			Probability:   res.Probability,
			RiskLevel:     string(res.RiskLevel),
			Severity:      realtime.Severity(res.Probability, txn.Amount),
			CreatedAt:     res.ScoredAt,
		})
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.checks.CheckAll(c.Request.Context())

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
	// Not ready until startup finishes and a classifier is loaded
	if !s.ready.Load() || !s.handle.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "fraudscore",
		"description": "Real-time payment fraud scoring",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

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
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Export connection pool stats
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	// Close database connection pool
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

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
