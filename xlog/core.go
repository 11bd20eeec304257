package xlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const coreKeyIgnored = ""

// coreConfig keeps what a logger was built from. Component loggers and the
// banner re-encode with their own key layout onto the same writers.
type coreConfig struct {
	encoder logEncoderType
	lvlEnc  zapcore.LevelEncoder
	tsEnc   zapcore.TimeEncoder
	writers []zapcore.WriteSyncer
}

func (cc coreConfig) newEncoder(layout zapcore.EncoderConfig) zapcore.Encoder {
	layout.EncodeLevel = cc.lvlEnc
	layout.EncodeTime = cc.tsEnc
	if cc.encoder == PlainText {
		return zapcore.NewConsoleEncoder(layout)
	}
	return zapcore.NewJSONEncoder(layout)
}

// build tees one core per writer, all gated by the same level.
func (cc coreConfig) build(lvlEnabler zapcore.LevelEnabler, layout zapcore.EncoderConfig) zapcore.Core {
	cores := make([]zapcore.Core, 0, len(cc.writers))
	for _, ws := range cc.writers {
		cores = append(cores, zapcore.NewCore(cc.newEncoder(layout), ws, lvlEnabler))
	}
	return zapcore.NewTee(cores...)
}

func appLayout() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		TimeKey:       "ts",
		CallerKey:     "callAt",
		EncodeCaller:  zapcore.ShortCallerEncoder,
		FunctionKey:   "fn",
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
}

// The component callers are inside the adapted libraries, they are dropped.
func componentLayout() zapcore.EncoderConfig {
	layout := appLayout()
	layout.CallerKey = coreKeyIgnored
	layout.FunctionKey = coreKeyIgnored
	return layout
}

// The message key is required by the encoder, the plain text encoder
// ignores it.
func bannerLayout() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:    "banner",
		LevelKey:      coreKeyIgnored,
		TimeKey:       coreKeyIgnored,
		CallerKey:     coreKeyIgnored,
		StacktraceKey: coreKeyIgnored,
	}
}

// newComponentLogger derives a named child logger on the parent writers.
// The child follows the parent level unless a level enabler is given.
func newComponentLogger(parent XLogger, name string, lvlEnabler zapcore.LevelEnabler) *xLogger {
	xl, ok := parent.(*xLogger)
	if !ok {
		panic("[XLogger] unknown parent logger")
	}
	if lvlEnabler == nil {
		lvlEnabler = xl.dynamicLevelEnabler
	}
	l := &xLogger{
		cores:               xl.cores,
		ctxFields:           xl.ctxFields,
		ctxFieldKeys:        xl.ctxFieldKeys,
		dynamicLevelEnabler: xl.dynamicLevelEnabler,
	}
	l.logger.Store(zap.New(xl.cores.build(lvlEnabler, componentLayout())).Named(name))
	return l
}
