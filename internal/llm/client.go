package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("vaidya.internal.llm")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Request struct {
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int32
}

// Client is a single-shot chat completion backend.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	Provider string // openai, gemini
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

var ErrEmptyCompletion = errors.New("llm: empty completion")

// New returns the backend named by cfg.Provider wrapped with tracing and a per-call timeout.
func New(ctx context.Context, cfg Config) (Client, error) {
	var (
		backend Client
		err     error
	)
	switch cfg.Provider {
	case "", "openai":
		backend, err = NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "gemini":
		backend, err = NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return &tracedClient{next: backend, provider: cfg.Provider, timeout: cfg.Timeout}, nil
}

type tracedClient struct {
	next     Client
	provider string
	timeout  time.Duration
}

func (c *tracedClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.complete", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", c.provider),
		attribute.Int("llm.messages", len(req.Messages)),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.next.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	return out, nil
}
