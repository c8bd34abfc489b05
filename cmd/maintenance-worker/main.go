package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/app"
	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/config"
	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/messaging"
	"github.com/hackgods/vaidya/internal/reply"
)

// maintenance-worker sends appointment reminders and keeps the slot horizon filled.
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

	logger.Info("maintenance-worker starting up",
		zap.Duration("reminder_interval", cfg.WorkerInterval),
		zap.Duration("slot_interval", cfg.SlotRegenInterval),
		zap.Int("horizon_days", cfg.SlotHorizonDays),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, rdb, err := app.Connect(rootCtx, cfg)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()
	defer rdb.Close()

	sender, err := messaging.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppNumber, logger)
	if err != nil {
		logger.Fatal("twilio", zap.Error(err))
	}

	repo := appointment.NewPgRepository(pool)
	reminders := appointment.NewReminders(repo, sender, reply.New(cfg.AppName, cfg.SupportEmail, cfg.Location), cfg.Location, nil, logger)
	slots := appointment.NewSlotGenerator(repo, cfg.SlotHorizonDays, cfg.Location, nil, logger)

	// Run once at startup
	sweep(rootCtx, reminders, logger)
	regenerate(rootCtx, slots, logger)

	reminderTicker := time.NewTicker(cfg.WorkerInterval)
	defer reminderTicker.Stop()
	slotTicker := time.NewTicker(cfg.SlotRegenInterval)
	defer slotTicker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping maintenance worker")
			return
		case <-reminderTicker.C:
			sweep(rootCtx, reminders, logger)
		case <-slotTicker.C:
			regenerate(rootCtx, slots, logger)
		}
	}
}

func sweep(ctx context.Context, r *appointment.Reminders, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	res, err := r.Sweep(runCtx)
	if err != nil {
		logger.Error("reminder sweep", zap.Error(err))
		return
	}
	logger.Info("reminder sweep complete",
		zap.Int("sent_24h", res.Sent24h),
		zap.Int("sent_1h", res.Sent1h),
		zap.Int("errors", res.Errors),
		zap.Duration("took", time.Since(start)),
	)
}

func regenerate(ctx context.Context, g *appointment.SlotGenerator, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	n, err := g.Regenerate(runCtx)
	if err != nil {
		logger.Error("slot regeneration", zap.Error(err))
		return
	}
	logger.Info("slot regeneration complete", zap.Int("created", n), zap.Duration("took", time.Since(start)))
}
