package api

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/threadmail/internal/api/handlers"
	"github.com/welldanyogia/threadmail/internal/api/middleware"
	"github.com/welldanyogia/threadmail/internal/repository"
	"github.com/welldanyogia/threadmail/internal/storage"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB          *gorm.DB
	FileStorage storage.FileStorage
	Sender      handlers.Sender
	Syncer      handlers.Syncer
	// Scheduler is nil when periodic synchronization is disabled
	Scheduler handlers.SchedulerStatus
	Logger    *slog.Logger

	// Security configuration
	APIKey         string   // empty = authentication disabled
	AllowedOrigins []string // allowed CORS origins
	Production     bool
	RateLimit      float64 // requests per second per IP
	RateBurst      int
	// TrustProxy takes the client address from X-Forwarded-For set by a
	// proxy on a private or loopback address
	TrustProxy bool
	// SyncCooldown is the minimum spacing of manual syncs per client
	SyncCooldown time.Duration
}

const limiterCleanupInterval = 10 * time.Minute

// newLimiter creates a per-IP limiter whose idle entries are pruned until
// the server shuts down
func newLimiter(e *echo.Echo, r rate.Limit, burst int) *middleware.IPRateLimiter {
	limiter := middleware.NewIPRateLimiter(r, burst)
	e.Server.RegisterOnShutdown(limiter.StartCleanup(limiterCleanupInterval))
	return limiter
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Forwarded headers are honoured only when the peer is a trusted proxy
	if cfg.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.Use(middleware.Recover())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.Production))
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(newLimiter(e, rate.Limit(cfg.RateLimit), cfg.RateBurst), logger))
	}
	e.Use(middleware.RequestLogger(logger))

	threadRepo := repository.NewThreadRepository(cfg.DB)
	messageRepo := repository.NewMessageRepository(cfg.DB)
	attachmentRepo := repository.NewAttachmentRepository(cfg.DB)

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Scheduler)
	threadHandler := handlers.NewThreadHandler(threadRepo, cfg.Sender)
	syncHandler := handlers.NewSyncHandler(cfg.Syncer, logger)
	attachmentHandler := handlers.NewAttachmentHandler(attachmentRepo, messageRepo, cfg.FileStorage)

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	api := e.Group("/api", middleware.APIKeyAuth(cfg.APIKey, logger))

	syncLimit := rate.Inf
	if cfg.SyncCooldown > 0 {
		syncLimit = rate.Every(cfg.SyncCooldown)
	}
	api.POST("/sync", syncHandler.Trigger,
		middleware.RateLimiter(newLimiter(e, syncLimit, 2), logger))

	threads := api.Group("/threads", middleware.BodyLimit("2M"))
	threads.GET("", threadHandler.List)
	threads.POST("", threadHandler.Create)
	threads.GET("/:id", threadHandler.Get)
	threads.POST("/:id/reply", threadHandler.Reply)

	api.GET("/messages/:message_id/attachments", attachmentHandler.List)

	attachments := api.Group("/attachments")
	attachments.GET("/:id", attachmentHandler.Get)
	attachments.GET("/:id/download", attachmentHandler.Download)

	api.GET("/files/*", attachmentHandler.Serve)

	return e
}
