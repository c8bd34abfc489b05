package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Turn struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// HistoryStore keeps the most recent turns of each conversation in a capped list.
type HistoryStore struct {
	client *redis.Client
	ttl    time.Duration
	max    int
}

func NewHistoryStore(client *redis.Client, max int, ttl time.Duration) *HistoryStore {
	if max <= 0 {
		max = 4
	}
	return &HistoryStore{client: client, ttl: ttl, max: max}
}

func historyKey(phone string) string {
	return "history:" + phone
}

// Load returns turns oldest first.
func (h *HistoryStore) Load(ctx context.Context, phone string) ([]Turn, error) {
	raw, err := h.client.LRange(ctx, historyKey(phone), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (h *HistoryStore) Append(ctx context.Context, phone string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, b)
	}

	key := historyKey(phone)
	pipe := h.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-h.max), -1)
	pipe.Expire(ctx, key, h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (h *HistoryStore) Clear(ctx context.Context, phone string) error {
	return h.client.Del(ctx, historyKey(phone)).Err()
}
