// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/config"
	"github.com/jkindrix/bluehome/internal/metrics"
)

// Querier is implemented by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// DB wraps the pgx connection pool.
type DB struct {
	Pool        *pgxpool.Pool
	QueryLogger *QueryLogger
	logger      *zap.Logger
}

// New creates a connection pool, attaches the query logger and verifies connectivity.
func New(ctx context.Context, cfg *config.DatabaseConfig, m *metrics.Metrics, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConnections)
	}
	if cfg.ConnectionMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnectionMaxLifetime
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	ql := NewQueryLogger(nil, m, logger)
	poolConfig.ConnConfig.Tracer = ql

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
		zap.Int32("max_connections", poolConfig.MaxConns),
	)

	return &DB{
		Pool:        pool,
		QueryLogger: ql,
		logger:      logger,
	}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("database connection closed")
	}
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// ReportPoolStats publishes pool usage gauges.
func (db *DB) ReportPoolStats(m *metrics.Metrics) {
	stat := db.Pool.Stat()
	m.UpdateDBConnections(int(stat.TotalConns()), int(stat.AcquiredConns()))
}

// RunPoolStatsReporter publishes pool gauges every interval until ctx is done.
func (db *DB) RunPoolStatsReporter(ctx context.Context, m *metrics.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.ReportPoolStats(m)
		}
	}
}
