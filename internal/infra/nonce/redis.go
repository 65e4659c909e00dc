// Package nonce stores single-use capture challenges. The Redis store is the
// deployment path; the memory store backs tests and single-node runs.
package nonce

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
)

const keyPrefix = "attest:nonce:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) (domain.NonceStore, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if ttl <= 0 {
		return nil, errors.New("nonce ttl must be positive")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisStore{client: client, ttl: ttl}, nil
}

func (s *redisStore) Issue(ctx context.Context) (string, error) {
	nonce := uuid.NewString()
	if err := s.client.Set(ctx, keyPrefix+nonce, "1", s.ttl).Err(); err != nil {
		return "", err
	}
	return nonce, nil
}

func (s *redisStore) Consume(ctx context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}
	removed, err := s.client.Del(ctx, keyPrefix+nonce).Result()
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}
