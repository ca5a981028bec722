// Package redis provides Redis-backed reference implementations of
// interceptor.IdempotencyStore and tools.UndoStore, for deployments that
// need idempotency and undo state to survive a process restart or be shared
// across scheduler replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stageflow/stageflow/stage"
)

const defaultIdempotencyTTL = 24 * time.Hour

// outputDTO is the JSON-serializable mirror of stage.Output, whose fields
// are otherwise private and reachable only through the OK/Fail/... factory
// functions and accessor methods.
type outputDTO struct {
	Status    stage.Status     `json:"status"`
	Data      map[string]any   `json:"data,omitempty"`
	Artifacts []stage.Artifact `json:"artifacts,omitempty"`
	Events    []stage.Event    `json:"events,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	Err       string           `json:"err,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
}

func toDTO(o stage.Output) outputDTO {
	return outputDTO{
		Status:    o.Status(),
		Data:      o.Data(),
		Artifacts: o.Artifacts(),
		Events:    o.Events(),
		Metadata:  o.Metadata(),
		Err:       o.Error(),
		Reason:    o.Reason(),
		Retryable: o.Retryable(),
	}
}

func (d outputDTO) toOutput() stage.Output {
	opts := []stage.Option{
		stage.WithData(d.Data),
		stage.WithArtifacts(d.Artifacts...),
		stage.WithEvents(d.Events...),
		stage.WithMetadata(d.Metadata),
	}
	switch d.Status {
	case stage.StatusFail:
		return stage.Fail(d.Err, d.Retryable, opts...)
	case stage.StatusRetry:
		return stage.Retry(d.Reason, d.Retryable, opts...)
	case stage.StatusSkip:
		return stage.Skip(d.Reason, opts...)
	case stage.StatusCancel:
		return stage.Cancel(d.Reason, opts...)
	default:
		return stage.OK(opts...)
	}
}

// IdempotencyStore implements interceptor.IdempotencyStore against Redis
// string keys, one per fingerprint, holding a JSON-encoded stage.Output.
// The interceptor.IdempotencyStore contract carries no context.Context or
// error return, so a background context and TTL bound every request; a
// Redis error or an unmarshalable entry is treated as a cache miss rather
// than surfaced to the caller, matching a cache's "best effort" contract.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// IdempotencyOption customizes an IdempotencyStore at construction.
type IdempotencyOption func(*IdempotencyStore)

// WithIdempotencyTTL overrides the default 24h entry lifetime.
func WithIdempotencyTTL(ttl time.Duration) IdempotencyOption {
	return func(s *IdempotencyStore) { s.ttl = ttl }
}

// WithIdempotencyKeyPrefix namespaces keys, e.g. per pipeline topology, so
// multiple pipelines can share one Redis instance without collisions.
func WithIdempotencyKeyPrefix(prefix string) IdempotencyOption {
	return func(s *IdempotencyStore) { s.prefix = prefix }
}

// NewIdempotencyStore constructs a Redis-backed IdempotencyStore.
func NewIdempotencyStore(client *redis.Client, opts ...IdempotencyOption) *IdempotencyStore {
	s := &IdempotencyStore{client: client, prefix: "stageflow:idempotency:", ttl: defaultIdempotencyTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *IdempotencyStore) key(fingerprint string) string {
	return s.prefix + fingerprint
}

// Get implements interceptor.IdempotencyStore.
func (s *IdempotencyStore) Get(fingerprint string) (stage.Output, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) || err != nil {
		return stage.Output{}, false
	}
	var dto outputDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return stage.Output{}, false
	}
	return dto.toOutput(), true
}

// Set implements interceptor.IdempotencyStore.
func (s *IdempotencyStore) Set(fingerprint string, out stage.Output) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := json.Marshal(toDTO(out))
	if err != nil {
		return
	}
	_ = s.client.Set(ctx, s.key(fingerprint), raw, s.ttl).Err()
}

// Ping verifies connectivity, for use in startup health checks.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("stores/redis: ping: %w", err)
	}
	return nil
}
