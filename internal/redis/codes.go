package redisclient

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore keeps hashed one-time codes with an expiry. A code can be consumed once.
type CodeStore struct {
	client *redis.Client
	prefix string
}

func NewCodeStore(client *redis.Client, prefix string) *CodeStore {
	return &CodeStore{client: client, prefix: prefix}
}

func (s *CodeStore) key(id string) string {
	return s.prefix + id
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func (s *CodeStore) Put(ctx context.Context, id, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(id), hashCode(code), ttl).Err(); err != nil {
		return fmt.Errorf("store one-time code: %w", err)
	}
	return nil
}

// Consume deletes the stored code for id and reports whether it matched.
// A wrong guess still burns the code.
func (s *CodeStore) Consume(ctx context.Context, id, code string) (bool, error) {
	stored, err := s.client.GetDel(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume one-time code: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(hashCode(code))) == 1, nil
}
