package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const maxLoggedQuery = 300

// queryLogger reports failed and slow statements. Missing rows are an
// expected outcome for mapping lookups and are not logged.
type queryLogger struct {
	logger    *zap.Logger
	threshold time.Duration
}

var _ bun.QueryHook = (*queryLogger)(nil)

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.Duration("elapsed", elapsed),
		zap.String("query", truncateQuery(event.Query)),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Warn("query failed", append(fields, zap.Error(event.Err))...)
	case h.threshold > 0 && elapsed >= h.threshold:
		h.logger.Warn("slow query", fields...)
	}
}

func truncateQuery(q string) string {
	if len(q) <= maxLoggedQuery {
		return q
	}
	return q[:maxLoggedQuery] + "..."
}
