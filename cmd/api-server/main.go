package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/api"
	"github.com/hackgods/vaidya/internal/app"
	"github.com/hackgods/vaidya/internal/config"
	"github.com/hackgods/vaidya/internal/db"
	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/messaging"
	"github.com/hackgods/vaidya/internal/metrics"
	"github.com/hackgods/vaidya/internal/queue"
	redisclient "github.com/hackgods/vaidya/internal/redis"
)

const (
	version  = "dev"
	dedupTTL = 24 * time.Hour
)

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

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("queue_mode", cfg.QueueMode),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == "dev" {
		if err := migrateUp(cfg.PostgresDSN); err != nil {
			logger.Fatal("migrations", zap.Error(err))
		}
	}

	pool, rdb, err := app.Connect(rootCtx, cfg)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Postgres and Redis")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	engine, err := app.NewEngine(rootCtx, cfg, pool, rdb, m, logger)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}

	var (
		dispatcher queue.Dispatcher
		drain      func(context.Context) error
	)
	switch cfg.QueueMode {
	case config.QueueModeAsynq:
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		defer client.Close()
		dispatcher = queue.NewAsynqDispatcher(client, cfg.ProcessTimeout, logger)
	default:
		inproc := queue.NewInProcess(engine.Runner, cfg.ProcessTimeout, logger)
		dispatcher = inproc
		drain = inproc.Drain
	}

	router := api.NewRouter(api.RouterConfig{
		Webhook: api.NewWebhookHandler(
			messaging.NewSignatureVerifier(cfg.Twilio.AuthToken, cfg.Twilio.PublicURL),
			cfg.Twilio.DevMode,
			redisclient.NewDeduper(rdb, dedupTTL),
			dispatcher,
			m,
			logger,
		),
		Records: api.NewRecordsHandler(engine.Records, logger),
		Health:  api.NewHealthHandler(pool, api.RedisPinger(rdb), cfg.Env, version),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if drain != nil {
		if err := drain(shutdownCtx); err != nil {
			logger.Warn("in-flight turns abandoned", zap.Error(err))
		}
	}
}

func migrateUp(dsn string) error {
	mg, err := db.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
