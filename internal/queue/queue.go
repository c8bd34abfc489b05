package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/processor"
)

// Handler runs one inbound message to completion.
type Handler interface {
	HandleInbound(ctx context.Context, in processor.Inbound) error
}

// Dispatcher hands an inbound message off for background processing. Dispatch must return
// quickly: the webhook acknowledges only after it does.
type Dispatcher interface {
	Dispatch(ctx context.Context, in processor.Inbound) error
}

// InProcess runs each message on its own goroutine, detached from the request context.
type InProcess struct {
	handler Handler
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewInProcess(h Handler, timeout time.Duration, logger *zap.Logger) *InProcess {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &InProcess{handler: h, timeout: timeout, logger: logging.OrNop(logger)}
}

func (d *InProcess) Dispatch(ctx context.Context, in processor.Inbound) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.handler.HandleInbound(ctx, in); err != nil {
			d.logger.Error("inbound processing failed",
				zap.String("phone", logging.MaskPhone(in.From)),
				zap.String("sid", in.SID),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Drain waits for in-flight messages or until ctx is done.
func (d *InProcess) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
