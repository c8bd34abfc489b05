package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/logging"
)

type RouterConfig struct {
	Webhook *WebhookHandler
	Records *RecordsHandler
	Health  *HealthHandler
	Metrics http.Handler // nil disables /metrics
	Logger  *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logging.OrNop(cfg.Logger)))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Post("/webhook/whatsapp", cfg.Webhook.ServeHTTP)
	r.Post("/records/access", cfg.Records.Access)

	return r
}
