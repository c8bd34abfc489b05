package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/conversation"
	"github.com/hackgods/vaidya/internal/llm"
	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/metrics"
	redisclient "github.com/hackgods/vaidya/internal/redis"
)

// Sender delivers one outbound WhatsApp message and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

type History interface {
	Load(ctx context.Context, phone string) ([]redisclient.Turn, error)
	Append(ctx context.Context, phone string, turns ...redisclient.Turn) error
	Clear(ctx context.Context, phone string) error
}

// Runner executes one inbound message end to end: lock, process, send, log.
type Runner struct {
	proc    *Processor
	locker  redisclient.Locker
	history History
	sender  Sender
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRunner wires a Runner. history may be nil to run without turn history.
func NewRunner(proc *Processor, locker redisclient.Locker, history History, sender Sender, m *metrics.Metrics, logger *zap.Logger) *Runner {
	return &Runner{
		proc:    proc,
		locker:  locker,
		history: history,
		sender:  sender,
		metrics: m,
		logger:  logging.OrNop(logger),
	}
}

// HandleInbound processes in while holding the conversation lock for its phone. Only a lock
// failure is returned; everything inside the turn degrades to a reply.
func (r *Runner) HandleInbound(ctx context.Context, in Inbound) error {
	start := time.Now()
	err := r.locker.WithConversationLock(ctx, in.From, func(ctx context.Context) error {
		res := r.proc.Process(ctx, in, r.loadHistory(ctx, in.From))

		sid, err := r.sender.Send(ctx, in.From, res.Reply)
		if err != nil {
			r.metrics.ObserveOutbound("failed")
			r.logger.Error("send reply",
				zap.String("phone", logging.MaskPhone(in.From)),
				zap.String("sid", in.SID),
				zap.Error(err),
			)
		} else {
			r.metrics.ObserveOutbound("sent")
		}

		if res.Conversation != nil {
			r.proc.Store.LogMessage(ctx, res.Conversation, conversation.Outbound, res.Reply, sid)
		}
		if res.FlowEnded {
			r.clearHistory(ctx, in.From)
		}
		r.appendHistory(ctx, in.From, in.Body, res.Reply)
		r.metrics.ObserveTurn(string(res.State()), time.Since(start).Seconds())
		return nil
	})
	if err != nil {
		return fmt.Errorf("handle inbound %s: %w", in.SID, err)
	}
	return nil
}

func (r *Runner) loadHistory(ctx context.Context, phone string) []llm.Message {
	if r.history == nil {
		return nil
	}
	turns, err := r.history.Load(ctx, phone)
	if err != nil {
		r.logger.Warn("load turn history", zap.Error(err))
		return nil
	}
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == string(llm.RoleAssistant) {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	return msgs
}

func (r *Runner) appendHistory(ctx context.Context, phone, in, out string) {
	if r.history == nil {
		return
	}
	err := r.history.Append(ctx, phone,
		redisclient.Turn{Role: string(llm.RoleUser), Content: in},
		redisclient.Turn{Role: string(llm.RoleAssistant), Content: out},
	)
	if err != nil {
		r.logger.Warn("append turn history", zap.Error(err))
	}
}

func (r *Runner) clearHistory(ctx context.Context, phone string) {
	if r.history == nil {
		return
	}
	if err := r.history.Clear(ctx, phone); err != nil {
		r.logger.Warn("clear turn history", zap.Error(err))
	}
}
