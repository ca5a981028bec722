package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stageflow/stageflow/tools"
)

// UndoStore implements tools.UndoStore against Redis string keys, relying on
// Redis's own key expiry (SET ... EX) to enforce the TTL tools.Executor
// passes at Put time, rather than reaping expired entries on read the way
// tools.MemoryUndoStore must.
type UndoStore struct {
	client *redis.Client
	prefix string
}

// UndoOption customizes an UndoStore at construction.
type UndoOption func(*UndoStore)

// WithUndoKeyPrefix namespaces keys.
func WithUndoKeyPrefix(prefix string) UndoOption {
	return func(s *UndoStore) { s.prefix = prefix }
}

// NewUndoStore constructs a Redis-backed UndoStore.
func NewUndoStore(client *redis.Client, opts ...UndoOption) *UndoStore {
	s := &UndoStore{client: client, prefix: "stageflow:undo:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UndoStore) key(actionID string) string {
	return s.prefix + actionID
}

// Put implements tools.UndoStore. ttl of 0 stores the record with no
// expiry, matching the Redis convention of a zero expiration meaning
// "persist" (the SET command is only given EX when ttl > 0).
func (s *UndoStore) Put(ctx context.Context, actionID string, record tools.UndoRecord, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("stores/redis: marshal undo record %q: %w", actionID, err)
	}
	if err := s.client.Set(ctx, s.key(actionID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("stores/redis: put undo record %q: %w", actionID, err)
	}
	return nil
}

// Get implements tools.UndoStore.
func (s *UndoStore) Get(ctx context.Context, actionID string) (tools.UndoRecord, bool, error) {
	raw, err := s.client.Get(ctx, s.key(actionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return tools.UndoRecord{}, false, nil
	}
	if err != nil {
		return tools.UndoRecord{}, false, fmt.Errorf("stores/redis: get undo record %q: %w", actionID, err)
	}
	var record tools.UndoRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return tools.UndoRecord{}, false, fmt.Errorf("stores/redis: unmarshal undo record %q: %w", actionID, err)
	}
	return record, true, nil
}

// Delete implements tools.UndoStore.
func (s *UndoStore) Delete(ctx context.Context, actionID string) error {
	if err := s.client.Del(ctx, s.key(actionID)).Err(); err != nil {
		return fmt.Errorf("stores/redis: delete undo record %q: %w", actionID, err)
	}
	return nil
}
