package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("conversation lock not acquired")
)

// Locker serializes message processing per phone number across processes.
type Locker interface {
	WithConversationLock(ctx context.Context, phone string, fn func(ctx context.Context) error) error
}

type redisConversationLocker struct {
	client   *redis.Client
	ttl      time.Duration
	minDelay time.Duration
	maxDelay time.Duration
}

// NewConversationLocker creates a locker backed by one Redis key per phone.
// fn runs with a deadline no later than ttl so the key cannot expire under a live holder.
func NewConversationLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisConversationLocker{
		client:   client,
		ttl:      ttl,
		minDelay: 25 * time.Millisecond,
		maxDelay: 500 * time.Millisecond,
	}
}

func conversationLockKey(phone string) string {
	return fmt.Sprintf("lock:conversation:%s", phone)
}

func (l *redisConversationLocker) WithConversationLock(ctx context.Context, phone string, fn func(ctx context.Context) error) error {
	key := conversationLockKey(phone)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = l.release(relCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// acquire retries SETNX with capped exponential backoff until ctx is done.
func (l *redisConversationLocker) acquire(ctx context.Context, key, token string) error {
	delay := l.minDelay
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
			}
			return fmt.Errorf("acquire conversation lock: %w", err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > l.maxDelay {
			delay = l.maxDelay
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisConversationLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release conversation lock: %w", err)
	}
	return nil
}
