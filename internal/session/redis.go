package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

// KeyPrefix namespaces session keys.
const KeyPrefix = "bluehome:session:"

// RedisStore keeps sessions as JSON strings with a Redis expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("session.redis"),
	}
}

func key(id string) string {
	return KeyPrefix + id
}

// Get loads a session.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, apperrors.SessionStoreError("get", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, apperrors.SessionStoreError("get", fmt.Errorf("decode session %s: %w", id, err))
	}
	return &sess, nil
}

// Save writes a session with SET ... EX ttl.
func (s *RedisStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return apperrors.SessionStoreError("save", fmt.Errorf("encode session: %w", err))
	}
	if err := s.client.Set(ctx, key(sess.ID), data, s.ttl).Err(); err != nil {
		return apperrors.SessionStoreError("save", err)
	}
	return nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return apperrors.SessionStoreError("delete", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
