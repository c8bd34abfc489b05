package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vaidya/internal/processor"
)

type recordingHandler struct {
	mu      sync.Mutex
	handled []processor.Inbound
	ctxErrs []error
	release chan struct{}
	err     error
}

func (h *recordingHandler) HandleInbound(ctx context.Context, in processor.Inbound) error {
	if h.release != nil {
		<-h.release
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, in)
	h.ctxErrs = append(h.ctxErrs, ctx.Err())
	return h.err
}

func TestInProcessDetachesFromRequestContext(t *testing.T) {
	h := &recordingHandler{release: make(chan struct{})}
	d := NewInProcess(h, time.Minute, nil)

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Dispatch(reqCtx, processor.Inbound{From: "+911234500000", SID: "SM1"}))
	cancel()
	close(h.release)

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, d.Drain(ctx))

	require.Len(t, h.handled, 1)
	assert.Equal(t, "SM1", h.handled[0].SID)
	assert.NoError(t, h.ctxErrs[0])
}

func TestInProcessDrainHonoursDeadline(t *testing.T) {
	h := &recordingHandler{release: make(chan struct{})}
	defer close(h.release)
	d := NewInProcess(h, time.Minute, nil)
	require.NoError(t, d.Dispatch(context.Background(), processor.Inbound{SID: "SM1"}))

	ctx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, d.Drain(ctx), context.DeadlineExceeded)
}

func TestInboundHandlerRoundTrip(t *testing.T) {
	lat, lng := 17.385, 78.4867
	in := processor.Inbound{From: "+911234500000", Body: "Hi", SID: "SM1", Latitude: &lat, Longitude: &lng}
	task, err := NewInboundTask(in)
	require.NoError(t, err)
	assert.Equal(t, TypeInboundMessage, task.Type())

	h := &recordingHandler{}
	require.NoError(t, NewInboundHandler(h, nil)(context.Background(), task))
	require.Len(t, h.handled, 1)
	assert.Equal(t, in, h.handled[0])
}

func TestInboundHandlerSkipsRetryOnBadPayload(t *testing.T) {
	h := &recordingHandler{}
	err := NewInboundHandler(h, nil)(context.Background(), asynq.NewTask(TypeInboundMessage, []byte("{not json")))

	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, h.handled)
}

func TestInboundHandlerPropagatesFailure(t *testing.T) {
	h := &recordingHandler{err: errors.New("conversation lock not acquired")}
	task, err := NewInboundTask(processor.Inbound{SID: "SM1"})
	require.NoError(t, err)

	assert.Error(t, NewInboundHandler(h, nil)(context.Background(), task))
}

func TestAsynqDispatcherIgnoresRedelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	d := NewAsynqDispatcher(client, time.Minute, nil)

	in := processor.Inbound{From: "+911234500000", Body: "Hi", SID: "SMdup"}
	require.NoError(t, d.Dispatch(context.Background(), in))
	require.NoError(t, d.Dispatch(context.Background(), in))

	assert.True(t, mr.Exists("asynq:{conversations}:t:SMdup"))
}
