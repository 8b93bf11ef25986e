package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces session entries in Redis.
const KeyPrefix = "heyodo:session:"

// RedisStore keeps pending relay state in Redis so it survives
// process restarts. Values are JSON-encoded State; expiry uses the
// native key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore with the given entry TTL.
// A ttl of 0 disables expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return KeyPrefix + id
}

func (r *RedisStore) write(ctx context.Context, id string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

// SetTarget implements Store.
func (r *RedisStore) SetTarget(ctx context.Context, id string, t Target) error {
	return r.write(ctx, id, State{Target: &t})
}

// SetAttachment implements Store.
func (r *RedisStore) SetAttachment(ctx context.Context, id, url string) error {
	return r.write(ctx, id, State{Attachment: url})
}

// Peek implements Store.
func (r *RedisStore) Peek(ctx context.Context, id string) (State, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read session state: %w", err)
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return State{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

// Clear implements Store.
func (r *RedisStore) Clear(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}
