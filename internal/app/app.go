// Package app wires the conversation engine from configuration. Every binary that runs
// turns builds the same graph, so it lives here rather than in each main.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/audit"
	"github.com/hackgods/vaidya/internal/config"
	"github.com/hackgods/vaidya/internal/conversation"
	"github.com/hackgods/vaidya/internal/db"
	"github.com/hackgods/vaidya/internal/intent"
	"github.com/hackgods/vaidya/internal/llm"
	"github.com/hackgods/vaidya/internal/messaging"
	"github.com/hackgods/vaidya/internal/metrics"
	"github.com/hackgods/vaidya/internal/patient"
	"github.com/hackgods/vaidya/internal/processor"
	redisclient "github.com/hackgods/vaidya/internal/redis"
	"github.com/hackgods/vaidya/internal/records"
	"github.com/hackgods/vaidya/internal/reply"
	"github.com/hackgods/vaidya/internal/search"
)

const historyTTL = time.Hour

// Engine is the wired conversation engine.
type Engine struct {
	Runner   *processor.Runner
	Records  *records.Service
	Booking  *appointment.Service
	Replies  *reply.Generator
	Sender   *messaging.TwilioSender
	Recorder audit.Recorder
}

// Connect opens postgres and redis with the configured credentials.
func Connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, *redis.Client, error) {
	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return pool, rdb, nil
}

// NewEngine builds every service a conversation turn touches.
func NewEngine(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) (*Engine, error) {
	model, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	sender, err := messaging.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppNumber, logger)
	if err != nil {
		return nil, fmt.Errorf("twilio: %w", err)
	}

	recorder := audit.NewPgRecorder(pool)
	patients := patient.NewPgRepository(pool)

	booking := appointment.NewService(appointment.NewPgRepository(pool), recorder, cfg.Location,
		appointment.WithMetrics(m),
		appointment.WithLogger(logger),
	)
	recordSvc := records.NewService(
		redisclient.NewCodeStore(rdb, "otp:record:"),
		patients,
		recorder,
		cfg.RecordLinkSecret,
		cfg.AppURL,
		cfg.RecordLinkTTL,
		logger,
	)
	replies := reply.New(cfg.AppName, cfg.SupportEmail, cfg.Location)

	proc := processor.New(processor.Deps{
		Intents:  intent.NewExtractor(model, logger),
		Store:    conversation.NewStore(conversation.NewPgRepository(pool), cfg.StaleAfter, logger),
		Patients: patients,
		Geocoder: patient.NewStaticGeocoder(),
		Search:   search.NewService(search.NewPgRepository(pool), cfg.Ranking, logger),
		Booking:  booking,
		Records:  recordSvc,
		Replies:  replies,
		Audit:    recorder,
		Metrics:  m,
		Logger:   logger,
		Location: cfg.Location,
	})

	runner := processor.NewRunner(
		proc,
		redisclient.NewConversationLocker(rdb, cfg.LockTTL),
		redisclient.NewHistoryStore(rdb, cfg.HistoryTurns, historyTTL),
		sender,
		m,
		logger,
	)

	return &Engine{
		Runner:   runner,
		Records:  recordSvc,
		Booking:  booking,
		Replies:  replies,
		Sender:   sender,
		Recorder: recorder,
	}, nil
}
