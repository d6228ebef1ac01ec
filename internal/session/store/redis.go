package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/agio-digital/session-keys-backend/internal/session/domain"
	"github.com/agio-digital/session-keys-backend/internal/storekey"
)

const (
	redisSessionPrefix = "sk:session:"
	redisSessionSetFmt = "sk:user:%s:sessions"
)

// RedisStore persists sessions as JSON values plus a per-user index set so
// GetAll needs no SCAN. Records carry no TTL: expiry is a validation-time
// decision and expired sessions stay readable until deleted.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisSessionKey(key string) string { return redisSessionPrefix + key }

func redisUserSet(userID string) string { return fmt.Sprintf(redisSessionSetFmt, userID) }

// Save stores the session at key and indexes it under the owning user.
func (s *RedisStore) Save(ctx context.Context, key string, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	userID, _ := storekey.Parse(key)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisSessionKey(key), data, 0)
	pipe.SAdd(ctx, redisUserSet(userID), key)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the session at key, or nil if absent.
func (s *RedisStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, redisSessionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// GetAll returns all sessions belonging to userID.
func (s *RedisStore) GetAll(ctx context.Context, userID string) ([]*domain.Session, error) {
	keys, err := s.client.SMembers(ctx, redisUserSet(userID)).Result()
	if err != nil {
		return nil, err
	}
	var out []*domain.Session
	for _, key := range keys {
		sess, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			out = append(out, sess)
		}
	}
	return out, nil
}

// Revoke marks the session at key revoked. Absent key is a no-op.
func (s *RedisStore) Revoke(ctx context.Context, key string) error {
	sess, err := s.Get(ctx, key)
	if err != nil || sess == nil {
		return err
	}
	sess.Revoked = true
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, redisSessionKey(key), data, 0).Err()
}

// Delete removes the session at key and drops it from the user index.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	userID, _ := storekey.Parse(key)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisSessionKey(key))
	pipe.SRem(ctx, redisUserSet(userID), key)
	_, err := pipe.Exec(ctx)
	return err
}
