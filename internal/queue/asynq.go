package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/processor"
)

const (
	TypeInboundMessage = "whatsapp:inbound"
	QueueConversations = "conversations"

	inboundMaxRetry = 3
)

func NewInboundTask(in processor.Inbound) (*asynq.Task, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal inbound: %w", err)
	}
	return asynq.NewTask(TypeInboundMessage, b), nil
}

// AsynqDispatcher enqueues inbound messages for cmd/conversation-worker.
type AsynqDispatcher struct {
	client  *asynq.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewAsynqDispatcher(client *asynq.Client, timeout time.Duration, logger *zap.Logger) *AsynqDispatcher {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &AsynqDispatcher{client: client, timeout: timeout, logger: logging.OrNop(logger)}
}

// Dispatch enqueues in. The message SID is the task id, so a redelivered webhook is a no-op.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, in processor.Inbound) error {
	task, err := NewInboundTask(in)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(QueueConversations),
		asynq.MaxRetry(inboundMaxRetry),
		asynq.Timeout(d.timeout),
	}
	if in.SID != "" {
		opts = append(opts, asynq.TaskID(in.SID))
	}

	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		d.logger.Info("inbound already queued", zap.String("sid", in.SID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue inbound %s: %w", in.SID, err)
	}
	d.logger.Debug("inbound queued", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return nil
}

// NewInboundHandler adapts h to an asynq task handler. Undecodable payloads are not retried.
func NewInboundHandler(h Handler, logger *zap.Logger) asynq.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(ctx context.Context, t *asynq.Task) error {
		var in processor.Inbound
		if err := json.Unmarshal(t.Payload(), &in); err != nil {
			logger.Error("invalid inbound payload", zap.Error(err))
			return fmt.Errorf("decode inbound: %v: %w", err, asynq.SkipRetry)
		}
		return h.HandleInbound(ctx, in)
	}
}

func NewServeMux(h Handler, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeInboundMessage, NewInboundHandler(h, logger))
	return mux
}
