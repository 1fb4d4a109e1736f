// Package main runs the club site HTTP server with the live check-in feed and graceful shutdown.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/riverside-fc/backend/config"
	"github.com/riverside-fc/backend/internal/attendance"
	"github.com/riverside-fc/backend/internal/auth"
	"github.com/riverside-fc/backend/internal/events"
	"github.com/riverside-fc/backend/internal/loginguard"
	"github.com/riverside-fc/backend/internal/middleware"
	"github.com/riverside-fc/backend/internal/ratelimit"
	"github.com/riverside-fc/backend/internal/realtime"
	"github.com/riverside-fc/backend/pkg/database"
	"github.com/riverside-fc/backend/pkg/metrics"
	"github.com/riverside-fc/backend/pkg/queue"
	"github.com/riverside-fc/backend/pkg/redis"
	"github.com/riverside-fc/backend/pkg/response"
	"github.com/riverside-fc/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		newLogger("info").Fatal("load config", zap.Error(err))
	}
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	// Local limiter (login per email, check-in per client, link generation per admin, site per IP)
	limiterStore := newLimiterStore(ctx, cfg.RateLimit, rdb, logger)
	limiter := ratelimit.New(limiterStore, ratelimit.WithLogger(logger))

	// Shared login limiter
	var guardBackend loginguard.Backend
	pgGuard := loginguard.NewPostgresBackend(pool)
	switch cfg.LoginGuard.Backend {
	case config.GuardRedis:
		// Redis decides; login_attempts keeps the audit trail
		guardBackend = loginguard.WithAudit(loginguard.NewRedisBackend(rdb.Client, cfg.LoginGuard.Window()), pgGuard)
	default:
		guardBackend = pgGuard
	}
	var (
		sink   loginguard.AttemptSink
		direct *loginguard.DirectLogger
	)
	if cfg.LoginGuard.LogViaQueue {
		sink = loginguard.NewQueueLogger(queue.NewQueue(rdb.Client, logger), logger)
	} else {
		direct = loginguard.NewDirectLogger(guardBackend, logger)
		sink = direct
	}
	guard := loginguard.NewGuard(guardBackend,
		loginguard.WithLogger(logger),
		loginguard.WithSink(sink),
		loginguard.WithDefaults(cfg.LoginGuard.Window(), cfg.LoginGuard.MaxAttempts),
	)

	// Live check-in feed
	var hub *realtime.Hub
	if rdb != nil {
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	// Event images
	var images events.ImageStore
	if cfg.AWS.ImagesBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ImagesBucket:    cfg.AWS.ImagesBucket,
			PublicBaseURL:   cfg.AWS.PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			images = s3Client
		}
	}

	// Attendance
	eventRepo := events.NewRepository(pool)
	attendanceRepo := attendance.NewRepository(pool)
	attendanceSvc := attendance.NewService(eventRepo, attendanceRepo, limiter, hub, attendance.Config{
		PublicOrigin:      cfg.Site.PublicOrigin,
		TokenTTL:          cfg.Attendance.TokenTTL(),
		RequireAgeBracket: cfg.Attendance.RequireAgeBracket,
		Location:          cfg.Site.Location(),
	}, logger)
	attendanceHandler := attendance.NewHandler(attendanceSvc, logger)
	eventsHandler := events.NewHandler(eventRepo, attendanceSvc, images, logger)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	if err := auth.EnsureAdmin(ctx, authRepo, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName, logger); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}
	authHandler := auth.NewHandler(authRepo, jwtService, limiter, guard, logger)

	wsValidate := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.AdminID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})))

	// Public: check-in form, roster and login, limited per client IP
	public := router.Group("")
	public.Use(middleware.RateLimit(limiter, ratelimit.PresetSite, middleware.ClientIPKey))
	{
		attendanceHandler.Register(public)
		public.POST("/auth/login", authHandler.Login)
	}

	// Admin console (JWT required)
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService))
	{
		admin.GET("/me", authHandler.Me)
		eventsHandler.Register(admin)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, realtime.NewUpgrader(cfg.Server.CORSAllowedOrigins), wsValidate, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if direct != nil {
		direct.Wait()
	}
	if closer, ok := limiterStore.(io.Closer); ok {
		_ = closer.Close()
	}
	logger.Info("server stopped")
}

// newLimiterStore picks where attempt records live. Redis and file stores
// keep blocks across restarts and are shared by every instance pointing at them.
func newLimiterStore(ctx context.Context, cfg config.RateLimitConfig, rdb *redis.Client, logger *zap.Logger) ratelimit.Store {
	switch cfg.Store {
	case config.StoreFile:
		return ratelimit.NewPersistedStore(ctx, ratelimit.FileBlob{Path: cfg.FilePath}, logger)
	case config.StoreRedis:
		return ratelimit.NewPersistedStore(ctx, ratelimit.RedisBlob{Client: rdb.Client, Prefix: cfg.RedisPrefix, IdleTTL: cfg.IdleTTL()}, logger)
	default:
		return ratelimit.NewMemoryStore()
	}
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, _ := config.Build()
	return logger
}
