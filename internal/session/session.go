// Package session provides the conversation state backends: in-process memory,
// Redis and PostgreSQL.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/clock"
	"github.com/jkindrix/bluehome/internal/config"
	"github.com/jkindrix/bluehome/internal/database"
	"github.com/jkindrix/bluehome/internal/domain"
)

// DefaultTTL is how long an idle conversation is remembered.
const DefaultTTL = 24 * time.Hour

// Store is a domain.SessionStore that can report health and release resources.
type Store interface {
	domain.SessionStore
	Ping(ctx context.Context) error
	Close() error
}

// Deps are the collaborators a backend may need.
type Deps struct {
	Redis  config.RedisConfig
	DB     database.Querier
	Clock  clock.Clock
	Logger *zap.Logger
}

// New builds the backend named by cfg.Backend.
func New(cfg config.SessionConfig, deps Deps) (Store, error) {
	if deps.Logger == nil {
		panic("logger is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.SessionBackendMemory:
		return NewMemoryStore(ttl, deps.Clock, deps.Logger), nil

	case config.SessionBackendRedis:
		if deps.Redis.Addr == "" {
			return nil, fmt.Errorf("session backend redis requires redis.addr")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     deps.Redis.Addr,
			Username: deps.Redis.Username,
			Password: deps.Redis.Password,
			DB:       deps.Redis.DB,
		})
		return NewRedisStore(client, ttl, deps.Logger), nil

	case config.SessionBackendPostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("session backend postgres requires a database")
		}
		return NewPostgresStore(deps.DB, ttl, deps.Clock, deps.Logger), nil

	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
