package database

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/metrics"
	"github.com/jkindrix/bluehome/internal/middleware"
)

// QueryLoggerConfig sets the logging thresholds.
type QueryLoggerConfig struct {
	// SlowQueryThreshold logs at WARN.
	SlowQueryThreshold time.Duration
	// VerySlowQueryThreshold logs at ERROR.
	VerySlowQueryThreshold time.Duration
	// LogAllQueries logs the rest at DEBUG.
	LogAllQueries bool
}

// DefaultQueryLoggerConfig returns 100ms and 500ms thresholds.
func DefaultQueryLoggerConfig() *QueryLoggerConfig {
	return &QueryLoggerConfig{
		SlowQueryThreshold:     100 * time.Millisecond,
		VerySlowQueryThreshold: 500 * time.Millisecond,
	}
}

// QueryStats is a snapshot of the tracer counters.
type QueryStats struct {
	Total           int64
	Slow            int64
	Failed          int64
	AvgDuration     time.Duration
	SlowestSQL      string
	SlowestDuration time.Duration
}

// QueryLogger is the pgx.QueryTracer of the pool. It feeds the query
// histogram and logs failed or slow statements with the caller's correlation id.
type QueryLogger struct {
	cfg     QueryLoggerConfig
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu    sync.Mutex
	stats QueryStats
	sum   time.Duration
}

var _ pgx.QueryTracer = (*QueryLogger)(nil)

// NewQueryLogger creates a QueryLogger. A nil cfg uses the defaults.
func NewQueryLogger(cfg *QueryLoggerConfig, m *metrics.Metrics, logger *zap.Logger) *QueryLogger {
	if cfg == nil {
		cfg = DefaultQueryLoggerConfig()
	}
	return &QueryLogger{cfg: *cfg, metrics: m, logger: logger.Named("query")}
}

// Stats returns the counters gathered so far.
func (ql *QueryLogger) Stats() QueryStats {
	ql.mu.Lock()
	defer ql.mu.Unlock()
	s := ql.stats
	if s.Total > 0 {
		s.AvgDuration = ql.sum / time.Duration(s.Total)
	}
	return s
}

type traceKey struct{}

type trace struct {
	start time.Time
	sql   string
}

func (ql *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, trace{start: time.Now(), sql: data.SQL})
}

func (ql *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if t, ok := ctx.Value(traceKey{}).(trace); ok {
		ql.record(ctx, t.sql, time.Since(t.start), data.Err)
	}
}

func (ql *QueryLogger) record(ctx context.Context, sql string, took time.Duration, err error) {
	slow := err == nil && took >= ql.cfg.SlowQueryThreshold

	ql.mu.Lock()
	ql.stats.Total++
	ql.sum += took
	if err != nil {
		ql.stats.Failed++
	}
	if slow {
		ql.stats.Slow++
	}
	if took > ql.stats.SlowestDuration {
		ql.stats.SlowestDuration = took
		ql.stats.SlowestSQL = truncateSQL(sql, 200)
	}
	ql.mu.Unlock()

	ql.metrics.RecordDBQuery(operationOf(sql), took, err)

	fields := []zap.Field{zap.String("sql", truncateSQL(sql, 500)), zap.Duration("duration", took)}
	if id := middleware.GetCorrelationID(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	switch {
	case err != nil:
		ql.logger.Error("query failed", append(fields, zap.Error(err))...)
	case took >= ql.cfg.VerySlowQueryThreshold:
		ql.logger.Error("very slow query detected", fields...)
	case slow:
		ql.logger.Warn("slow query detected", fields...)
	case ql.cfg.LogAllQueries:
		ql.logger.Debug("query executed", fields...)
	}
}

// operationOf labels a statement by its verb and first table, e.g. "insert_leads".
func operationOf(sql string) string {
	words := strings.Fields(strings.ToLower(sql))
	if len(words) == 0 {
		return "unknown"
	}
	for i := 0; i+1 < len(words); i++ {
		switch words[i] {
		case "from", "into", "update", "table":
			if t := strings.Trim(words[i+1], "(;"); t != "if" {
				return words[0] + "_" + t
			}
			return words[0]
		}
	}
	return words[0]
}

func truncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen-3] + "..."
}
