package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/clock"
	"github.com/jkindrix/bluehome/internal/database"
	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

// PostgresStore keeps sessions in the chat_sessions table.
type PostgresStore struct {
	db     database.Querier
	ttl    time.Duration
	clock  clock.Clock
	logger *zap.Logger
}

// NewPostgresStore creates a store on db.
func NewPostgresStore(db database.Querier, ttl time.Duration, clk clock.Clock, logger *zap.Logger) *PostgresStore {
	if clk == nil {
		clk = clock.New()
	}
	return &PostgresStore{
		db:     db,
		ttl:    ttl,
		clock:  clk,
		logger: logger.Named("session.postgres"),
	}
}

// Get loads a session. Expired rows count as missing.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM chat_sessions WHERE id = $1 AND expires_at > $2`,
		id, s.clock.Now(),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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

// Save upserts a session and pushes its expiry forward.
func (s *PostgresStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return apperrors.SessionStoreError("save", fmt.Errorf("encode session: %w", err))
	}

	now := s.clock.Now()
	_, err = s.db.Exec(ctx, `
		INSERT INTO chat_sessions (id, data, updated_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at`,
		sess.ID, data, now, now.Add(s.ttl),
	)
	if err != nil {
		return apperrors.SessionStoreError("save", err)
	}
	return nil
}

// Delete removes a session.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id); err != nil {
		return apperrors.SessionStoreError("delete", err)
	}
	return nil
}

// DeleteExpired removes expired rows and returns how many were deleted.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM chat_sessions WHERE expires_at <= $1`, s.clock.Now())
	if err != nil {
		return 0, apperrors.SessionStoreError("delete_expired", err)
	}
	return tag.RowsAffected(), nil
}

// RunCleanup calls DeleteExpired every interval until ctx is done.
func (s *PostgresStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			n, err := s.DeleteExpired(ctx)
			if err != nil {
				s.logger.Warn("expired session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Debug("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}

// Ping runs a trivial query.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}
