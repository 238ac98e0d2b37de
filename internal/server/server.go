// Package server wires the HTTP API together.
package server

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	rd "github.com/redis/go-redis/v9"

	"github.com/terryong/negolah/internal/catalog"
	"github.com/terryong/negolah/internal/config"
	"github.com/terryong/negolah/internal/gateway"
	"github.com/terryong/negolah/internal/health"
	"github.com/terryong/negolah/internal/idgen"
	"github.com/terryong/negolah/internal/logging"
	"github.com/terryong/negolah/internal/metrics"
	"github.com/terryong/negolah/internal/negotiation"
	"github.com/terryong/negolah/internal/notify"
	"github.com/terryong/negolah/internal/orders"
	"github.com/terryong/negolah/internal/ratelimit"
	"github.com/terryong/negolah/internal/reservation"
	"github.com/terryong/negolah/internal/resolve"
	"github.com/terryong/negolah/internal/settlement"
	"github.com/terryong/negolah/internal/validation"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg *config.Config

	catalogStore     catalog.Store
	orderStore       orders.Store
	leaseStore       reservation.Store
	paymentGateway   gateway.PaymentGateway
	negotiationSvc   *negotiation.Service
	reservationSvc   *reservation.Service
	sweeper          *reservation.Sweeper
	sweepTimer       *reservation.Timer
	coordinator      *settlement.Coordinator
	resolver         *resolve.Resolver
	notifyHub        *notify.Hub
	notifySvc        *notify.Service
	healthReg        *health.Registry
	rateLimiter      *ratelimit.Limiter
	db               *sql.DB    // nil if using in-memory
	redis            *rd.Client // nil if using in-memory
	router           *gin.Engine
	httpSrv          *http.Server
	logger           *slog.Logger
	cancelRunCtx     context.CancelFunc // cancels background goroutines started in Run
	shutdownComplete atomic.Bool

	// Health state
	ready atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGateway sets a custom payment gateway (for testing and demo mode).
func WithGateway(gw gateway.PaymentGateway) Option {
	return func(s *Server) {
		s.paymentGateway = gw
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		healthReg: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Durable stores: Postgres when configured, in-memory otherwise.
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.db = db
		s.catalogStore = catalog.NewPostgresStore(db)
		s.orderStore = orders.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage")
		s.healthReg.Register("postgres", health.FromError("postgres", func(ctx context.Context) error {
			return db.PingContext(ctx)
		}))
	} else {
		s.catalogStore = catalog.NewMemoryStore()
		s.orderStore = orders.NewMemoryStore()
		s.logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	// Lease store: Redis when configured, in-memory otherwise.
	if cfg.RedisAddr != "" {
		s.redis = rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		redisStore := reservation.NewRedisStore(s.redis)
		s.leaseStore = redisStore
		s.logger.Info("using Redis lease store", "addr", cfg.RedisAddr)
		s.healthReg.Register("redis", health.FromError("redis", redisStore.Ping))
	} else {
		s.leaseStore = reservation.NewMemoryStore()
		s.logger.Warn("REDIS_ADDR not set, using in-memory lease store")
	}

	// Payment gateway: Stripe, unless an option injected something else.
	if s.paymentGateway == nil {
		if cfg.StripeAPIKey == "" {
			return nil, fmt.Errorf("STRIPE_API_KEY is required")
		}
		s.paymentGateway = gateway.NewStripeGateway(cfg.StripeAPIKey, cfg.Currency, cfg.CheckoutRedirectURL)
	}

	// Domain services.
	s.negotiationSvc = negotiation.NewService(s.catalogStore, cfg.DefaultFloorRatio)
	s.reservationSvc = reservation.NewService(s.leaseStore, s.catalogStore, s.paymentGateway, s.negotiationSvc, cfg.LeaseTTL)
	s.sweeper = reservation.NewSweeper(s.leaseStore, s.paymentGateway)
	s.sweepTimer = reservation.NewTimer(s.sweeper, cfg.SweepInterval, s.logger)
	s.notifyHub = notify.NewHub(s.logger)
	s.notifySvc = notify.NewService(s.notifyHub, notify.NewPoster(cfg.ConversationURL), s.logger)
	s.coordinator = settlement.NewCoordinator(s.catalogStore, s.orderStore, s.reservationSvc, s.notifySvc)
	s.resolver = resolve.NewResolver(s.catalogStore, resolve.NewCatalogSearcher(s.catalogStore))

	gin.SetMode(ginMode(cfg.Env))
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func ginMode(env string) string {
	if env == "production" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}

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
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.WithPrefix("req")
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		if buyerID := c.GetHeader("X-Buyer-ID"); buyerID != "" && validation.IsValidID(buyerID) {
			ctx = logging.WithBuyerID(ctx, buyerID)
		}
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

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket notifications
	s.router.GET("/ws", func(c *gin.Context) {
		s.notifyHub.HandleWebSocket(c.Writer, c.Request)
	})

	// Provider webhook, outside the versioned group
	settlementHandler := settlement.NewHandler(s.coordinator, s.cfg.StripeWebhookSecret)
	settlementHandler.RegisterWebhookRoutes(s.router)

	v1 := s.router.Group("/v1")
	{
		catalog.NewHandler(s.catalogStore).RegisterRoutes(v1)
		negotiation.NewHandler(s.negotiationSvc).RegisterRoutes(v1)
		reservation.NewHandler(s.reservationSvc).RegisterRoutes(v1)
		orders.NewHandler(s.orderStore).RegisterRoutes(v1)
		resolve.NewHandler(s.resolver).RegisterRoutes(v1)
		settlementHandler.RegisterRoutes(v1)
	}

	admin := s.router.Group("/v1/admin", s.adminAuthMiddleware())
	{
		catalog.NewHandler(s.catalogStore).RegisterAdminRoutes(admin)
		reservation.NewHandler(s.reservationSvc).RegisterAdminRoutes(admin)
		admin.POST("/sweep", s.sweepHandler)
	}
}

// adminAuthMiddleware guards seller-side routes with a shared secret.
func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "admin_disabled",
				"message": "Admin endpoints are disabled; set ADMIN_SECRET to enable them",
			})
			return
		}
		provided := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid admin secret",
			})
			return
		}
		c.Next()
	}
}

// sweepHandler handles POST /v1/admin/sweep, forcing a sweep pass outside
// the regular schedule.
func (s *Server) sweepHandler(c *gin.Context) {
	reaped, err := s.sweeper.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "sweep_failed",
			"message": "Could not sweep expired leases",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reaped": reaped})
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"healthy":      healthy,
		"checks":       statuses,
		"sweepRunning": s.sweepTimer.Running(),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
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

	go s.notifyHub.Run(runCtx)
	go s.sweepTimer.Start(runCtx)

	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

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

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	if !s.shutdownComplete.CompareAndSwap(false, true) {
		return nil
	}
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.sweepTimer.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("redis close error", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
