package xlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xset/lib/infra"
)

const (
	ContextKeyMapToOmitempty = "_"
	ContextKeyMapToItself    = ""
)

var printBanner = sync.Once{}

type xLogger struct {
	logger              atomic.Pointer[zap.Logger]
	cores               coreConfig
	ctxFields           map[string]string // Read only after the logger created.
	ctxFieldKeys        []string
	dynamicLevelEnabler zap.AtomicLevel
}

func (l *xLogger) zap() *zap.Logger {
	return l.logger.Load()
}

// IncreaseLogLevel changes the level of the logger and the components
// following it, concurrently.
func (l *xLogger) IncreaseLogLevel(level zapcore.Level) {
	l.dynamicLevelEnabler.SetLevel(level)
}

func (l *xLogger) Sync() error {
	return l.logger.Load().Sync()
}

func (l *xLogger) Level() string {
	return l.dynamicLevelEnabler.Level().String()
}

// Banner prints once per process, without level, time and caller.
func (l *xLogger) Banner(banner Banner) {
	printBanner.Do(func() {
		msg := banner.JSON()
		if l.cores.encoder == PlainText {
			msg = banner.PlainText()
		}
		bl := zap.New(l.cores.build(zap.NewAtomicLevelAt(zapcore.InfoLevel), bannerLayout()))
		bl.Info(msg)
		_ = bl.Sync()
	})
}

func (l *xLogger) Debug(msg string, fields ...zap.Field) {
	l.logger.Load().Debug(msg, fields...)
}

func (l *xLogger) Info(msg string, fields ...zap.Field) {
	l.logger.Load().Info(msg, fields...)
}

func (l *xLogger) Warn(msg string, fields ...zap.Field) {
	l.logger.Load().Warn(msg, fields...)
}

func (l *xLogger) Error(err error, msg string, fields ...zap.Field) {
	l.logger.Load().Error(msg, errorFields(err, make([]zap.Field, 0, len(fields)+1), fields)...)
}

func (l *xLogger) ErrorStack(err error, msg string, fields ...zap.Field) {
	l.logger.Load().Error(msg, errorStackFields(err, make([]zap.Field, 0, len(fields)+1), fields)...)
}

func (l *xLogger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Load().Debug(msg, append(l.extractFieldsFromContext(ctx), fields...)...)
}

func (l *xLogger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Load().Info(msg, append(l.extractFieldsFromContext(ctx), fields...)...)
}

func (l *xLogger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Load().Warn(msg, append(l.extractFieldsFromContext(ctx), fields...)...)
}

func (l *xLogger) ErrorContext(ctx context.Context, err error, msg string, fields ...zap.Field) {
	l.logger.Load().Error(msg, errorFields(err, l.extractFieldsFromContext(ctx), fields)...)
}

func (l *xLogger) ErrorStackContext(ctx context.Context, err error, msg string, fields ...zap.Field) {
	l.logger.Load().Error(msg, errorStackFields(err, l.extractFieldsFromContext(ctx), fields)...)
}

func (l *xLogger) Logf(lvl zapcore.Level, format string, args ...any) {
	l.logger.Load().Log(lvl, fmt.Sprintf(format, args...))
}

func errorFields(err error, dst, fields []zap.Field) []zap.Field {
	if err != nil {
		dst = append(dst, zap.String("error", err.Error()))
	}
	return append(dst, fields...)
}

// The ErrorStack inlines "error", "errors" and "errorStack".
func errorStackFields(err error, dst, fields []zap.Field) []zap.Field {
	var es infra.ErrorStack
	if errors.As(err, &es) && es != nil {
		return append(append(dst, zap.Inline(es)), fields...)
	}
	return errorFields(err, dst, fields)
}

type loggerCfg struct {
	ctxFields   map[string]string
	encoderType logEncoderType
	lvlEncoder  zapcore.LevelEncoder
	tsEncoder   zapcore.TimeEncoder
	level       *zapcore.Level
	writers     []zapcore.WriteSyncer
}

type XLoggerOption func(*loggerCfg) error

// NewXLogger panics on an invalid option. The level defaults to the XLOG_LVL
// env and the output to the standard output.
func NewXLogger(opts ...XLoggerOption) XLogger {
	cfg := &loggerCfg{
		encoderType: JSON,
		lvlEncoder:  zapcore.CapitalLevelEncoder,
		tsEncoder:   zapcore.ISO8601TimeEncoder,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(cfg); err != nil {
			panic(err)
		}
	}
	if len(cfg.writers) == 0 {
		cfg.writers = []zapcore.WriteSyncer{getOutWriter(nil)}
	}
	lvl := getLogLevelOrDefault(os.Getenv("XLOG_LVL"))
	if cfg.level != nil {
		lvl = *cfg.level
	}

	xl := &xLogger{
		cores: coreConfig{
			encoder: cfg.encoderType,
			lvlEnc:  cfg.lvlEncoder,
			tsEnc:   cfg.tsEncoder,
			writers: cfg.writers,
		},
		ctxFields:           cfg.ctxFields,
		ctxFieldKeys:        make([]string, 0, len(cfg.ctxFields)),
		dynamicLevelEnabler: zap.NewAtomicLevelAt(lvl),
	}
	for key := range cfg.ctxFields {
		xl.ctxFieldKeys = append(xl.ctxFieldKeys, key)
	}
	sort.Strings(xl.ctxFieldKeys)

	// The xLogger methods are one frame above the caller.
	xl.logger.Store(zap.New(
		xl.cores.build(xl.dynamicLevelEnabler, appLayout()),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	))
	return xl
}

// WithXLoggerWriter appends an output, every output gets all entries.
func WithXLoggerWriter(w io.Writer) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if w == nil {
			return infra.NewErrorStack("[XLogger] nil writer")
		}
		cfg.writers = append(cfg.writers, getOutWriter(w))
		return nil
	}
}

func WithXLoggerEncoder(logEnc logEncoderType) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if logEnc >= _encMax {
			return infra.NewErrorStack(fmt.Sprintf("[XLogger] unknown encoder %d", logEnc))
		}
		cfg.encoderType = logEnc
		return nil
	}
}

func WithXLoggerLevel(lvl logLevel) XLoggerOption {
	return func(cfg *loggerCfg) error {
		zl := lvl.zapLevel()
		cfg.level = &zl
		return nil
	}
}

// WithXLoggerLevelEncoder ignores the nil encoder.
func WithXLoggerLevelEncoder(lvlEnc zapcore.LevelEncoder) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if lvlEnc != nil {
			cfg.lvlEncoder = lvlEnc
		}
		return nil
	}
}

// WithXLoggerTimeEncoder ignores the nil encoder.
func WithXLoggerTimeEncoder(tsEnc zapcore.TimeEncoder) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if tsEnc != nil {
			cfg.tsEncoder = tsEnc
		}
		return nil
	}
}

// WithXLoggerContextFieldExtract logs the context value of the field by
// the *Context methods. The field is renamed if mapTo is given. The nil
// value is logged as "nil" unless mapTo is ContextKeyMapToOmitempty.
func WithXLoggerContextFieldExtract(field string, mapTo ...string) XLoggerOption {
	return func(cfg *loggerCfg) error {
		if len(field) == 0 {
			return nil
		}
		if cfg.ctxFields == nil {
			cfg.ctxFields = make(map[string]string, 8)
		}
		if len(mapTo) == 0 || mapTo[0] == ContextKeyMapToItself {
			mapTo = []string{field}
		}
		cfg.ctxFields[field] = mapTo[0]
		return nil
	}
}

// ParseLogLevel is case-insensitive, the unknown level falls back to DEBUG.
func ParseLogLevel(level string) logLevel {
	switch lvl := logLevel(strings.ToUpper(strings.TrimSpace(level))); lvl {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return lvl
	default:
		return LogLevelDebug
	}
}

func getLogLevelOrDefault(level string) zapcore.Level {
	return ParseLogLevel(level).zapLevel()
}

// ContextKey is the plain string key to store the value in context which
// could be extracted by the logger.
type ContextKey string

func (l *xLogger) extractFieldsFromContext(ctx context.Context) []zap.Field {
	if ctx == nil || len(l.ctxFieldKeys) == 0 {
		return []zap.Field{}
	}

	fields := make([]zap.Field, 0, len(l.ctxFieldKeys))
	for _, key := range l.ctxFieldKeys {
		v := ctx.Value(ContextKey(key))
		if v == nil {
			v = ctx.Value(key)
		}
		mapTo := l.ctxFields[key]
		switch {
		case mapTo == ContextKeyMapToOmitempty && v == nil:
		case mapTo == ContextKeyMapToOmitempty:
			fields = append(fields, zap.Any(key, v))
		case v == nil:
			fields = append(fields, zap.String(mapTo, "nil"))
		default:
			fields = append(fields, zap.Any(mapTo, v))
		}
	}
	return fields
}
