package bunmapper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/uptrace/bun"
)

// DefaultSlowThreshold is the duration above which a query is logged as slow.
const DefaultSlowThreshold = 100 * time.Millisecond

// QueryStats is a point-in-time view of a QueryLogger's counters.
type QueryStats struct {
	Selects  int64
	Execs    int64
	Duration time.Duration
	Slow     int64
	Errors   int64
}

// Total returns the number of statements seen.
func (s QueryStats) Total() int64 { return s.Selects + s.Execs }

func (s QueryStats) String() string {
	return fmt.Sprintf("selects=%d execs=%d duration=%s slow=%d errors=%d",
		s.Selects, s.Execs, s.Duration, s.Slow, s.Errors)
}

// QueryLogger is a bun.QueryHook that counts statements and logs them.
// Every statement is logged at debug level, slow ones at warn and failed
// ones at error. sql.ErrNoRows is not counted as a failure.
type QueryLogger struct {
	logger    *slog.Logger
	threshold time.Duration

	selects  atomic.Int64
	execs    atomic.Int64
	duration atomic.Int64
	slow     atomic.Int64
	failed   atomic.Int64
}

var _ bun.QueryHook = (*QueryLogger)(nil)

// QueryLoggerOption configures a QueryLogger.
type QueryLoggerOption func(*QueryLogger)

// WithSlowThreshold sets the slow query threshold. Zero disables slow query logging.
func WithSlowThreshold(d time.Duration) QueryLoggerOption {
	return func(h *QueryLogger) { h.threshold = d }
}

// NewQueryLogger returns a hook writing to logger. A nil logger discards output.
func NewQueryLogger(logger *slog.Logger, opts ...QueryLoggerOption) *QueryLogger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &QueryLogger{logger: logger, threshold: DefaultSlowThreshold}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *QueryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryLogger) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	h.duration.Add(int64(elapsed))

	op := event.Operation()
	if op == "SELECT" {
		h.selects.Add(1)
	} else {
		h.execs.Add(1)
	}

	attrs := []slog.Attr{
		slog.String("operation", op),
		slog.Duration("duration", elapsed),
		slog.String("query", event.Query),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.failed.Add(1)
		h.logger.LogAttrs(ctx, slog.LevelError, "query failed", append(attrs, slog.Any("error", event.Err))...)
	case h.threshold > 0 && elapsed > h.threshold:
		h.slow.Add(1)
		h.logger.LogAttrs(ctx, slog.LevelWarn, "slow query detected", attrs...)
	default:
		h.logger.LogAttrs(ctx, slog.LevelDebug, "query", attrs...)
	}
}

// Stats returns the current counters.
func (h *QueryLogger) Stats() QueryStats {
	return QueryStats{
		Selects:  h.selects.Load(),
		Execs:    h.execs.Load(),
		Duration: time.Duration(h.duration.Load()),
		Slow:     h.slow.Load(),
		Errors:   h.failed.Load(),
	}
}

// Reset zeroes the counters.
func (h *QueryLogger) Reset() {
	h.selects.Store(0)
	h.execs.Store(0)
	h.duration.Store(0)
	h.slow.Store(0)
	h.failed.Store(0)
}
