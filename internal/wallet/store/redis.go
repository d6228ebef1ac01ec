package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/agio-digital/session-keys-backend/internal/storekey"
	"github.com/agio-digital/session-keys-backend/internal/wallet/domain"
)

const (
	redisWalletPrefix = "sk:wallet:"
	redisWalletSetFmt = "sk:user:%s:wallets"
)

// RedisStore persists wallets as JSON values plus a per-user index set.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Redis-backed wallet store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisWalletKey(key string) string { return redisWalletPrefix + key }

func redisUserSet(userID string) string { return fmt.Sprintf(redisWalletSetFmt, userID) }

// Save stores the wallet at key and indexes it under the owning user.
func (s *RedisStore) Save(ctx context.Context, key string, w *domain.Wallet) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wallet: %w", err)
	}
	userID, _ := storekey.Parse(key)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisWalletKey(key), data, 0)
	pipe.SAdd(ctx, redisUserSet(userID), key)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the wallet at key, or nil if absent.
func (s *RedisStore) Get(ctx context.Context, key string) (*domain.Wallet, error) {
	val, err := s.client.Get(ctx, redisWalletKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var w domain.Wallet
	if err := json.Unmarshal([]byte(val), &w); err != nil {
		return nil, fmt.Errorf("decode wallet: %w", err)
	}
	return &w, nil
}

// GetAll returns all wallets belonging to userID.
func (s *RedisStore) GetAll(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	keys, err := s.client.SMembers(ctx, redisUserSet(userID)).Result()
	if err != nil {
		return nil, err
	}
	var out []*domain.Wallet
	for _, key := range keys {
		w, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if w != nil {
			out = append(out, w)
		}
	}
	return out, nil
}

// Delete removes the wallet at key and drops it from the user index.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	userID, _ := storekey.Parse(key)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisWalletKey(key))
	pipe.SRem(ctx, redisUserSet(userID), key)
	_, err := pipe.Exec(ctx)
	return err
}
