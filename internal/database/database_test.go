package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/erpsync/internal/config"
)

func TestNew_SQLite(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Database: config.Database{
		Driver:    "sqlite",
		WriterDSN: "file::memory:?cache=shared",
		ReaderDSN: "file::memory:?cache=shared",
	}}

	conns, err := New(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, conns.Writer, conns.Reader)

	lc.RequireStart()
	defer lc.RequireStop()

	require.NoError(t, conns.Ping(context.Background()))
	assert.Equal(t, 1, conns.Writer.DB.Stats().MaxOpenConnections)
}

func TestNew_RejectsUnknownDriver(t *testing.T) {
	_, err := New(fxtest.NewLifecycle(t), config.Config{Database: config.Database{Driver: "oracle", WriterDSN: "x"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenSQLDB_EmptyDSN(t *testing.T) {
	_, err := openSQLDB("postgres", "")
	assert.Error(t, err)
}

func TestQueryLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hook := &queryLogger{logger: zap.New(core), threshold: 50 * time.Millisecond}
	ctx := context.Background()

	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "SELECT * FROM sync_mappings", StartTime: time.Now(), Err: sql.ErrNoRows})
	assert.Zero(t, logs.Len())

	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "UPDATE sync_mappings SET sync_status = 'processing'", StartTime: time.Now().Add(-time.Second)})
	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "INSERT INTO sync_logs", StartTime: time.Now(), Err: errors.New("constraint failed")})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "slow query", entries[0].Message)
	assert.Equal(t, "query failed", entries[1].Message)
}

func TestTruncateQuery(t *testing.T) {
	long := strings.Repeat("x", maxLoggedQuery+10)
	assert.Len(t, truncateQuery(long), maxLoggedQuery+3)
	assert.Equal(t, "SELECT 1", truncateQuery("SELECT 1"))
}
