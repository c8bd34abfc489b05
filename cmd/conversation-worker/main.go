package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/app"
	"github.com/hackgods/vaidya/internal/config"
	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/queue"
)

// conversation-worker consumes inbound messages enqueued by the api-server when
// QUEUE_MODE=asynq.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, rdb, err := app.Connect(rootCtx, cfg)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()
	defer rdb.Close()

	engine, err := app.NewEngine(rootCtx, cfg, pool, rdb, nil, logger)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		},
		asynq.Config{
			Concurrency:     cfg.WorkerConcurrency,
			Queues:          map[string]int{queue.QueueConversations: 1},
			ShutdownTimeout: cfg.ShutdownTimeout,
			Logger:          logger.Sugar(),
		},
	)

	logger.Info("conversation-worker starting",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("queue", queue.QueueConversations),
	)
	if err := srv.Start(queue.NewServeMux(engine.Runner, logger)); err != nil {
		logger.Fatal("start asynq server", zap.Error(err))
	}

	<-rootCtx.Done()
	logger.Info("shutting down conversation-worker")
	srv.Shutdown()
}
