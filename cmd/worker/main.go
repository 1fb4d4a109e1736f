// Package main runs the background job worker (queued login attempts, audit pruning).
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/riverside-fc/backend/config"
	"github.com/riverside-fc/backend/internal/loginguard"
	"github.com/riverside-fc/backend/internal/worker"
	"github.com/riverside-fc/backend/pkg/database"
	"github.com/riverside-fc/backend/pkg/queue"
	"github.com/riverside-fc/backend/pkg/redis"
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

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	pgBackend := loginguard.NewPostgresBackend(pool)
	var recorder worker.AttemptRecorder = pgBackend
	if cfg.LoginGuard.Backend == config.GuardRedis {
		recorder = loginguard.WithAudit(loginguard.NewRedisBackend(rdb.Client, cfg.LoginGuard.Window()), pgBackend)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	if rdb != nil {
		processor := worker.NewLoginAttemptProcessor(recorder, queue.NewQueue(rdb.Client, logger), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor.Run(workerCtx)
		}()
		logger.Info("login attempt worker started")
	}

	pruner := worker.NewPruner(pgBackend, cfg.Worker.Retention(), cfg.Worker.PruneInterval(), logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		pruner.Run(workerCtx)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
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
