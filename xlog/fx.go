package xlog

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxXLogger prints the fx lifecycle events. Successful steps go to debug,
// failed steps to error with the "failed" suffix.
type FxXLogger struct {
	logger XLogger
}

func (l *FxXLogger) LogEvent(event fxevent.Event) {
	if l == nil || l.logger == nil {
		return
	}

	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		l.logger.Debug("fx hook starting", hookFields(e.FunctionName, e.CallerName)...)
	case *fxevent.OnStartExecuted:
		l.result(e.Err, "fx hook started",
			append(hookFields(e.FunctionName, e.CallerName), zap.Duration("in", e.Runtime))...,
		)
	case *fxevent.OnStopExecuting:
		l.logger.Debug("fx hook stopping", hookFields(e.FunctionName, e.CallerName)...)
	case *fxevent.OnStopExecuted:
		l.result(e.Err, "fx hook stopped",
			append(hookFields(e.FunctionName, e.CallerName), zap.Duration("in", e.Runtime))...,
		)
	case *fxevent.Supplied:
		l.result(e.Err, "fx supplied", zap.String("type", e.TypeName))
	case *fxevent.Provided:
		l.result(e.Err, "fx provided",
			zap.String("constructor", e.ConstructorName),
			zap.Strings("types", e.OutputTypeNames),
		)
	case *fxevent.Invoked:
		l.result(e.Err, "fx invoked", zap.String("function", e.FunctionName))
	case *fxevent.RollingBack:
		l.logger.Warn("fx start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		l.result(e.Err, "fx rolled back")
	case *fxevent.Started:
		l.result(e.Err, "fx started")
	case *fxevent.Stopping:
		l.logger.Info("fx stopping", zap.Stringer("signal", e.Signal))
	case *fxevent.Stopped:
		l.result(e.Err, "fx stopped")
	case *fxevent.LoggerInitialized:
		l.result(e.Err, "fx logger initialized", zap.String("constructor", e.ConstructorName))
	}
}

func (l *FxXLogger) result(err error, msg string, fields ...zap.Field) {
	if err != nil {
		l.logger.Error(err, msg+" failed", fields...)
		return
	}
	l.logger.Debug(msg, fields...)
}

func hookFields(function, caller string) []zap.Field {
	return []zap.Field{
		zap.String("function", function),
		zap.String("caller", caller),
	}
}

func NewFxXLogger(logger XLogger) *FxXLogger {
	return &FxXLogger{logger: newComponentLogger(logger, "Fx", nil)}
}
