package bunmapper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-repository-relation/query"
)

func TestQueryLogger_CountsAndLogs(t *testing.T) {
	db := newDB(t)
	var buf bytes.Buffer
	h := NewQueryLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	db.AddQueryHook(h)
	ctx := context.Background()

	_, err := db.NewInsert().Model(&author{Name: "ann"}).Exec(ctx)
	require.NoError(t, err)
	n, err := db.NewSelect().Model((*author)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats := h.Stats()
	assert.Equal(t, int64(1), stats.Selects)
	assert.Equal(t, int64(1), stats.Execs)
	assert.Equal(t, int64(2), stats.Total())
	assert.Zero(t, stats.Errors)
	assert.Contains(t, buf.String(), "operation=INSERT")
	assert.Contains(t, buf.String(), "operation=SELECT")

	h.Reset()
	assert.Zero(t, h.Stats().Total())
}

func TestQueryLogger_SlowAndFailed(t *testing.T) {
	db := newDB(t)
	var buf bytes.Buffer
	h := NewQueryLogger(slog.New(slog.NewTextHandler(&buf, nil)), WithSlowThreshold(time.Nanosecond))
	db.AddQueryHook(h)
	ctx := context.Background()

	_, err := db.NewSelect().Model((*author)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.Stats().Slow)
	assert.Contains(t, buf.String(), "slow query detected")

	_, err = db.NewRaw("SELECT * FROM missing_table").Exec(ctx)
	require.Error(t, err)
	assert.Equal(t, int64(1), h.Stats().Errors)
	assert.Contains(t, buf.String(), "query failed")
}

func TestQueryLogger_IgnoresNoRows(t *testing.T) {
	db := newDB(t)
	h := NewQueryLogger(nil, WithSlowThreshold(0))
	db.AddQueryHook(h)

	var a author
	err := db.NewSelect().Model(&a).Where("id = ?", 42).Scan(context.Background())
	require.Error(t, err)
	assert.Zero(t, h.Stats().Errors)
	assert.Zero(t, h.Stats().Slow)
}

func TestMapper_DriverErrors(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	boom := errors.New("boom")
	m := New[post](db, Describe[post](db))
	ctx := context.Background()

	mock.ExpectQuery("SELECT").WillReturnError(boom)
	_, err = m.Count(ctx, query.New())
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT").WillReturnError(boom)
	_, err = m.FindBySQL(ctx, m.Render(query.New()))
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec("DELETE").WillReturnError(boom)
	_, err = m.DeleteAll(ctx, query.New())
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec("UPDATE").WillReturnError(boom)
	_, err = m.UpdateAll(ctx, query.New(), query.Clause{SQL: "title = ?", Args: []any{"x"}})
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}
