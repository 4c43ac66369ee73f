package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMultiHandler_RoutesByLevel(t *testing.T) {
	var all, errorsOnly bytes.Buffer
	log := slog.New(NewMultiHandler(
		slog.NewJSONHandler(&all, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&errorsOnly, &slog.HandlerOptions{Level: slog.LevelError}),
	)).With("service", "auth")

	log.Info("user registered", "user_id", 7)
	log.Error("refresh failed", "error", "boom")

	assert.Equal(t, 2, bytes.Count(all.Bytes(), []byte("\n")))
	assert.Equal(t, 1, bytes.Count(errorsOnly.Bytes(), []byte("\n")))
	assert.Contains(t, errorsOnly.String(), `"service":"auth"`)
}

func TestNewJSONHandler_Level(t *testing.T) {
	ctx := context.Background()
	assert.True(t, NewJSONHandler(&bytes.Buffer{}, "development").Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewJSONHandler(&bytes.Buffer{}, "production").Enabled(ctx, slog.LevelDebug))
}

func TestPGHandler_Entry(t *testing.T) {
	h := &PGHandler{sink: &pgSink{}}
	assert.False(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	withReq := h.WithAttrs([]slog.Attr{slog.String("request_id", "req-1")}).(*PGHandler)

	rec := slog.NewRecord(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), slog.LevelError, "failed to revoke sessions", 0)
	rec.AddAttrs(
		slog.Uint64("user_id", 42),
		slog.String("action", "logout"),
		slog.String("error", "connection refused"),
		slog.Float64("latency_ms", 12.6),
		slog.String("path", "/api/auth/logout"),
	)

	require.NoError(t, withReq.Handle(context.Background(), rec))
	require.Len(t, h.sink.buffer, 1, "derived handlers share the sink")

	e := h.sink.buffer[0]
	assert.Equal(t, "ERROR", e.Level)
	assert.Equal(t, "req-1", e.TraceID)
	require.NotNil(t, e.UserID)
	assert.Equal(t, "42", *e.UserID)
	assert.Equal(t, "logout", e.Action)
	assert.Equal(t, "connection refused", e.Error)
	assert.Equal(t, 13, e.LatencyMs)

	var extra map[string]any
	require.NoError(t, json.Unmarshal(e.Extra, &extra))
	assert.Equal(t, "/api/auth/logout", extra["path"])
}

func TestPurgeSystemLogs(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cutoff := time.Now().Add(-LogRetention)
	mock.ExpectExec(`DELETE FROM "system_logs" WHERE timestamp < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := purgeSystemLogs(db, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
