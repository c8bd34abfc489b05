package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestConversationLockSerializesSamePhone(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewConversationLocker(client, 5*time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := locker.WithConversationLock(ctx, "+911234500000", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestConversationLockGivesUpWhenContextEnds(t *testing.T) {
	mr, client := newTestClient(t)
	require.NoError(t, mr.Set(conversationLockKey("+910000000001"), "someone-else"))

	locker := NewConversationLocker(client, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	called := false
	err := locker.WithConversationLock(ctx, "+910000000001", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
}

func TestConversationLockReleasedAfterError(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewConversationLocker(client, 5*time.Second)

	boom := errors.New("boom")
	err := locker.WithConversationLock(context.Background(), "+910000000002", func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(conversationLockKey("+910000000002")))
}

func TestDeduperFirstSeen(t *testing.T) {
	_, client := newTestClient(t)
	d := NewDeduper(client, time.Hour)
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "SM123")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, "SM123")
	require.NoError(t, err)
	assert.False(t, again)

	empty, err := d.FirstSeen(ctx, "")
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestCodeStoreSingleUse(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewCodeStore(client, "otp:record:")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "jti-1", "482913", 5*time.Minute))
	stored, err := mr.Get("otp:record:jti-1")
	require.NoError(t, err)
	assert.NotEqual(t, "482913", stored)

	ok, err := store.Consume(ctx, "jti-1", "482913")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Consume(ctx, "jti-1", "482913")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeStoreWrongCodeBurns(t *testing.T) {
	_, client := newTestClient(t)
	store := NewCodeStore(client, "otp:record:")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "jti-2", "111111", 5*time.Minute))

	ok, err := store.Consume(ctx, "jti-2", "222222")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Consume(ctx, "jti-2", "111111")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeStoreExpires(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewCodeStore(client, "otp:record:")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "jti-3", "333333", 5*time.Minute))
	mr.FastForward(5*time.Minute + time.Second)

	ok, err := store.Consume(ctx, "jti-3", "333333")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryKeepsLatestTurns(t *testing.T) {
	_, client := newTestClient(t)
	h := NewHistoryStore(client, 4, time.Hour)
	ctx := context.Background()

	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, h.Append(ctx, "+91999", Turn{Role: "user", Content: msg}, Turn{Role: "assistant", Content: msg + "!"}))
	}

	turns, err := h.Load(ctx, "+91999")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "b", turns[0].Content)
	assert.Equal(t, "c!", turns[3].Content)

	require.NoError(t, h.Clear(ctx, "+91999"))
	turns, err = h.Load(ctx, "+91999")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
