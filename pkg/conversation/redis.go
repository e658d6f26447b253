package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/pact/pkg/identity"
)

const (
	stateKeyPrefix  = "pact:conv:"
	recentKeyPrefix = "pact:recent:"
)

// RedisStore keeps wizard state in Redis so chat sessions survive process
// restarts and scale across webhook replicas. Keys carry the idle TTL
// natively; the Manager's lazy expiry check stays as a second line.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a client. ttl bounds how long idle state survives.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) GetState(ctx context.Context, phone identity.Phone) (*State, bool, error) {
	raw, err := r.client.Get(ctx, stateKeyPrefix+string(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load conversation state: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("decode conversation state: %w", err)
	}
	return &s, true, nil
}

func (r *RedisStore) PutState(ctx context.Context, s *State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode conversation state: %w", err)
	}
	if err := r.client.Set(ctx, stateKeyPrefix+string(s.Phone), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store conversation state: %w", err)
	}
	return nil
}

func (r *RedisStore) DeleteState(ctx context.Context, phone identity.Phone) error {
	if err := r.client.Del(ctx, stateKeyPrefix+string(phone)).Err(); err != nil {
		return fmt.Errorf("delete conversation state: %w", err)
	}
	return nil
}

func (r *RedisStore) GetRecent(ctx context.Context, phone identity.Phone) (*Recent, bool, error) {
	raw, err := r.client.Get(ctx, recentKeyPrefix+string(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load quick-add context: %w", err)
	}
	var rec Recent
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decode quick-add context: %w", err)
	}
	return &rec, true, nil
}

func (r *RedisStore) PutRecent(ctx context.Context, phone identity.Phone, rec *Recent) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode quick-add context: %w", err)
	}
	if err := r.client.Set(ctx, recentKeyPrefix+string(phone), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store quick-add context: %w", err)
	}
	return nil
}

func (r *RedisStore) DeleteRecent(ctx context.Context, phone identity.Phone) error {
	if err := r.client.Del(ctx, recentKeyPrefix+string(phone)).Err(); err != nil {
		return fmt.Errorf("delete quick-add context: %w", err)
	}
	return nil
}
