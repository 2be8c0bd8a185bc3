package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm diagnostics into zap.
//
// Bound parameters are dropped before statements are rendered, so credential
// hashes and invitation codes never appear in query logs.
type GormLogger struct {
	base          *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(base *zap.Logger, level gormlogger.LogLevel) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &GormLogger{
		base:          base.Named("gorm"),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		WithContext(ctx, l.base).Info(msg, zap.Int("args", len(data)))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		WithContext(ctx, l.base).Warn(msg, zap.Int("args", len(data)))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		WithContext(ctx, l.base).Error(msg, zap.Int("args", len(data)))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	notFound := errors.Is(err, gormlogger.ErrRecordNotFound)

	var emit func(string, ...zap.Field)
	log := WithContext(ctx, l.base)
	switch {
	case err != nil && !notFound && l.level >= gormlogger.Error:
		emit = log.Error
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		emit = log.Warn
	case l.level >= gormlogger.Info:
		emit = log.Debug
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("operation", operationFromSQL(sql)),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.Int64("rows_affected", rows),
	}
	if err != nil && !notFound {
		fields = append(fields, zap.Error(err))
	}
	emit("gorm.query", fields...)
}

func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func operationFromSQL(sql string) string {
	for _, word := range strings.Fields(strings.ToUpper(sql)) {
		word = strings.Trim(word, "();")
		switch word {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return word
		}
	}
	return "UNKNOWN"
}

var (
	_ gormlogger.Interface    = (*GormLogger)(nil)
	_ gorm.ParamsFilter       = (*GormLogger)(nil)
)
