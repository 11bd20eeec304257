package xlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	glogger "gorm.io/gorm/logger"
	gutils "gorm.io/gorm/utils"
)

const defaultGormSlowThreshold = 500 * time.Millisecond

var _ glogger.Interface = (*GormXLogger)(nil)

// GormXLogger routes the gorm SQL traces into the "Gorm" component logger.
// LogMode changes the level in place, gorm sessions share the logger.
type GormXLogger struct {
	logger         XLogger
	lvlEnabler     zap.AtomicLevel
	gormLevel      atomic.Int32
	slowThreshold  time.Duration
	ignoreNotFound bool
}

type GormXLoggerOption func(*GormXLogger)

func WithGormXLoggerSlowThreshold(threshold time.Duration) GormXLoggerOption {
	return func(l *GormXLogger) {
		l.slowThreshold = threshold
	}
}

func WithGormXLoggerLogLevel(lvl glogger.LogLevel) GormXLoggerOption {
	return func(l *GormXLogger) {
		l.gormLevel.Store(int32(lvl))
	}
}

// WithGormXLoggerIgnoreRecord404Err drops the gorm.ErrRecordNotFound traces,
// a missing run is a normal lookup result.
func WithGormXLoggerIgnoreRecord404Err() GormXLoggerOption {
	return func(l *GormXLogger) {
		l.ignoreNotFound = true
	}
}

func NewGormXLogger(logger XLogger, opts ...GormXLoggerOption) *GormXLogger {
	gl := &GormXLogger{
		slowThreshold: defaultGormSlowThreshold,
	}
	gl.gormLevel.Store(int32(glogger.Warn))
	for _, o := range opts {
		o(gl)
	}
	gl.lvlEnabler = zap.NewAtomicLevelAt(gormToZapLevel(gl.level()))
	gl.logger = newComponentLogger(logger, "Gorm", gl.lvlEnabler)
	return gl
}

func (l *GormXLogger) level() glogger.LogLevel {
	return glogger.LogLevel(l.gormLevel.Load())
}

func (l *GormXLogger) LogMode(lvl glogger.LogLevel) glogger.Interface {
	l.gormLevel.Store(int32(lvl))
	l.lvlEnabler.SetLevel(gormToZapLevel(lvl))
	return l
}

func (l *GormXLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level() >= glogger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...), callerField())
	}
}

func (l *GormXLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level() >= glogger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...), callerField())
	}
}

func (l *GormXLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level() >= glogger.Error {
		l.logger.ErrorContext(ctx, nil, fmt.Sprintf(msg, data...), callerField())
	}
}

// Trace logs a failed statement at error, a slow one at warn and any other
// statement at info, each gated by the gorm level.
func (l *GormXLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	lvl := l.level()
	if lvl <= glogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && lvl >= glogger.Error && !l.isIgnored(err):
		l.logger.ErrorContext(ctx, err, "sql failed", traceFields(fc, elapsed)...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && lvl >= glogger.Warn:
		l.logger.WarnContext(ctx, "slow sql",
			append(traceFields(fc, elapsed), zap.Int64("thresholdMs", l.slowThreshold.Milliseconds()))...,
		)
	case lvl >= glogger.Info:
		l.logger.InfoContext(ctx, "sql", traceFields(fc, elapsed)...)
	}
}

func (l *GormXLogger) isIgnored(err error) bool {
	return l.ignoreNotFound && errors.Is(err, glogger.ErrRecordNotFound)
}

func callerField() zap.Field {
	return zap.String("fileAndLine", gutils.FileWithLineNum())
}

// Negative rows means gorm did not count them.
func traceFields(fc func() (string, int64), elapsed time.Duration) []zap.Field {
	sql, rows := fc()
	affected := "-"
	if rows >= 0 {
		affected = strconv.FormatInt(rows, 10)
	}
	return []zap.Field{
		callerField(),
		zap.String("rows", affected),
		zap.Int64("elapsedMs", elapsed.Milliseconds()),
		zap.String("sql", sql),
	}
}

func gormToZapLevel(lvl glogger.LogLevel) zapcore.Level {
	switch lvl {
	case glogger.Info:
		return zapcore.InfoLevel
	case glogger.Warn:
		return zapcore.WarnLevel
	case glogger.Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel
	}
}
