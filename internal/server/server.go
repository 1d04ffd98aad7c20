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
	"github.com/patissio/patissio/internal/admin"
	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/billing"
	"github.com/patissio/patissio/internal/catalog"
	"github.com/patissio/patissio/internal/circuitbreaker"
	"github.com/patissio/patissio/internal/config"
	"github.com/patissio/patissio/internal/domains"
	"github.com/patissio/patissio/internal/health"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/media"
	"github.com/patissio/patissio/internal/metrics"
	"github.com/patissio/patissio/internal/notification"
	"github.com/patissio/patissio/internal/order"
	"github.com/patissio/patissio/internal/payments"
	"github.com/patissio/patissio/internal/ratelimit"
	"github.com/patissio/patissio/internal/realtime"
	"github.com/patissio/patissio/internal/security"
	"github.com/patissio/patissio/internal/social"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/workshop"
	"github.com/patissio/patissio/migrations"
	"github.com/redis/go-redis/v9"
)

// Version is reported by /health.
const Version = "0.1.0"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg    *config.Config
	db     *sql.DB       // nil if using in-memory
	redis  *redis.Client // nil if rate limiting is in-memory
	router *gin.Engine
	logger *slog.Logger

	httpSrv      *http.Server
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	drainDelay   time.Duration

	health      *health.Registry
	limiter     *ratelimit.Limiter
	rateBackend ratelimit.Backend
	memLimiter  *ratelimit.MemoryBackend // janitor to stop on shutdown
	hub         *realtime.Hub
	breaker     *circuitbreaker.Breaker

	// Overridable upstreams
	payments payments.Provider
	hosting  domains.Provider
	feed     social.Feed

	tenants       tenant.Store
	resolver      *tenant.Resolver
	tokens        *auth.Manager
	authService   *auth.Service
	catalog       *catalog.Service
	orders        *order.Service
	workshops     *workshop.Service
	notifications *notification.Service
	billing       *billing.Service
	domains       *domains.Service
	social        *social.Service
	media         *media.Service
	uploads       *media.LocalDisk
	admin         *admin.Service

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

// WithPayments replaces the Stripe provider chosen from config.
func WithPayments(p payments.Provider) Option {
	return func(s *Server) {
		s.payments = p
	}
}

// WithDomainProvider replaces the hosting provider chosen from config.
func WithDomainProvider(p domains.Provider) Option {
	return func(s *Server) {
		s.hosting = p
	}
}

// WithFeed replaces the Instagram client.
func WithFeed(f social.Feed) Option {
	return func(s *Server) {
		s.feed = f
	}
}

// WithRateLimitBackend replaces the Redis or in-memory limiter backend.
func WithRateLimitBackend(b ratelimit.Backend) Option {
	return func(s *Server) {
		s.rateBackend = b
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		logger:     logging.New(cfg.LogLevel, "json"),
		health:     health.NewRegistry(),
		drainDelay: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	st := memoryStores()
	if cfg.DatabaseURL != "" {
		db, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.db = db
		st = postgresStores(db)
		s.health.Register("database", health.Ping("database", db.PingContext))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	s.setupRateLimiter(ctx)

	if err := s.setupServices(st); err != nil {
		s.closeStorage()
		return nil, err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// setupRateLimiter picks Redis when REDIS_URL is set and reachable,
// otherwise a per-process memory backend.
func (s *Server) setupRateLimiter(ctx context.Context) {
	backend := s.rateBackend
	if backend == nil && s.cfg.RedisURL != "" {
		backend = s.redisBackend(ctx)
	}
	if backend == nil {
		s.memLimiter = ratelimit.NewMemoryBackend(time.Minute)
		backend = s.memLimiter
	}
	s.limiter = ratelimit.New(backend)
}

func (s *Server) redisBackend(ctx context.Context) ratelimit.Backend {
	opts, err := redis.ParseURL(s.cfg.RedisURL)
	if err != nil {
		s.logger.Warn("invalid REDIS_URL, using in-memory rate limiting", "error", err)
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		s.logger.Warn("redis unreachable, using in-memory rate limiting", "error", err)
		_ = client.Close()
		return nil
	}

	s.redis = client
	s.health.Register("redis", health.Ping("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	s.logger.Info("using Redis rate limiting", "addr", opts.Addr)
	return ratelimit.NewRedisBackend(client, "patissio:ratelimit:")
}

func (s *Server) setupServices(st stores) error {
	cfg := s.cfg

	if s.payments == nil {
		if cfg.PaymentsEnabled() {
			s.payments = payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
			s.logger.Info("stripe payments enabled")
		} else {
			s.payments = payments.Disabled{}
			s.logger.Info("stripe payments disabled (no STRIPE_SECRET_KEY set)")
		}
	}

	// One breaker, keyed per upstream.
	s.breaker = circuitbreaker.New(5, 30*time.Second)

	if s.hosting == nil {
		if cfg.HostingConfigured() {
			s.hosting = domains.NewHostingClient(domains.HostingConfig{
				BaseURL:   cfg.HostingAPIURL,
				Token:     cfg.HostingAPIToken,
				ProjectID: cfg.HostingProjectID,
				TeamID:    cfg.HostingTeamID,
			}, s.breaker)
		} else {
			s.hosting = domains.Unconfigured{}
		}
	}
	if s.feed == nil {
		s.feed = social.NewInstagramClient(cfg.InstagramAPIURL, s.breaker)
	}

	uploads, err := media.NewLocalDisk(cfg.UploadDir, cfg.PublicUploadURL)
	if err != nil {
		return err
	}
	s.uploads = uploads

	s.hub = realtime.NewHub(s.logger,
		realtime.WithOriginCheck(security.PlatformOrigins(s.cfg.AppURL, s.cfg.PlatformDomain)))
	s.notifications = notification.NewService(st.notifications).WithPublisher(s.hub)

	s.tenants = st.tenants
	s.resolver = tenant.NewResolver(st.tenants, cfg.PlatformDomain)
	s.tokens = auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	s.authService = auth.NewService(st.users, st.tenants, s.tokens)

	s.catalog = catalog.NewService(st.catalog)
	s.orders = order.NewService(st.orders, s.catalog, st.tenants).
		WithPayments(s.payments, cfg.PlatformFeeBPS, cfg.AppURL).
		WithNotifier(s.notifications)
	s.workshops = workshop.NewService(st.workshops).
		WithPayments(s.payments, cfg.PlatformFeeBPS, cfg.AppURL).
		WithNotifier(s.notifications)

	s.billing = billing.NewService(st.subscriptions, st.tenants, s.payments, cfg.StripePrices, cfg.AppURL).
		WithFulfilment(s.orders, s.workshops)
	s.domains = domains.NewService(st.tenants, s.hosting, cfg.PlatformDomain)
	s.social = social.NewService(s.feed)
	s.media = media.NewService(st.images, uploads, st.tenants)
	s.admin = admin.NewService(st.tenants).WithCounters(s.orders, s.workshops)

	return nil
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
// Health
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ok, checks := s.health.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !ok {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   Version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
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

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"platform_domain", s.cfg.PlatformDomain,
			"payments", s.payments.Enabled(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.hub.Run(runCtx)
	go s.social.RunSweeper(runCtx)
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
	defer signal.Stop(sigChan)

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

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	var shutdownErr error
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	if s.memLimiter != nil {
		s.memLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	s.closeStorage()

	s.logger.Info("server stopped")
	return shutdownErr
}

func (s *Server) closeStorage() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("redis close error", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}
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
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
