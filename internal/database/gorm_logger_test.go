package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func observedGormLogger(slow time.Duration) (gormlogger.Interface, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return newGormLogger(zap.New(core), slow), logs
}

func statement() (string, int64) { return "SELECT * FROM notifications", 2 }

func TestGormLoggerReportsFailuresButNotMissingRows(t *testing.T) {
	l, logs := observedGormLogger(time.Second)
	ctx := context.Background()

	l.Trace(ctx, time.Now(), statement, gorm.ErrRecordNotFound)
	require.Zero(t, logs.Len())

	l.Trace(ctx, time.Now(), statement, errors.New("disk I/O error"))
	require.Equal(t, 1, logs.FilterMessage("query failed").Len())
	entry := logs.All()[0]
	require.Equal(t, zapcore.ErrorLevel, entry.Level)
	require.Equal(t, "SELECT * FROM notifications", entry.ContextMap()["sql"])
}

func TestGormLoggerReportsSlowQueries(t *testing.T) {
	l, logs := observedGormLogger(10 * time.Millisecond)

	l.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)
	require.Equal(t, 1, logs.FilterMessage("slow query").Len())

	l.Trace(context.Background(), time.Now(), statement, nil)
	require.Equal(t, 1, logs.Len())
}

func TestGormLoggerSilentMode(t *testing.T) {
	l, logs := observedGormLogger(time.Millisecond)
	silent := l.LogMode(gormlogger.Silent)

	silent.Trace(context.Background(), time.Now().Add(-time.Second), statement, errors.New("boom"))
	silent.Warn(context.Background(), "ignored %d", 1)
	require.Zero(t, logs.Len())

	l.LogMode(gormlogger.Info).Info(context.Background(), "migrated %d tables", 2)
	require.Equal(t, 1, logs.FilterMessage("migrated 2 tables").Len())
}
