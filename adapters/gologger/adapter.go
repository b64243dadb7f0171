package gologger

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	glog "github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-custom-sender/core"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// NewZapLogger builds the process logger from the log config. Format is
// "json" (default) or "console".
func NewZapLogger(cfg core.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(strings.ToLower(cfg.Level)))
	if err != nil || strings.TrimSpace(cfg.Level) == "" {
		level = zapcore.InfoLevel
	}
	encoding := strings.TrimSpace(strings.ToLower(cfg.Format))
	if encoding != "console" {
		encoding = "json"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("gologger: build zap logger: %w", err)
	}
	return logger, nil
}

// Provider hands out named glog loggers backed by one zap logger.
type Provider struct {
	base *zap.Logger
}

func NewProvider(base *zap.Logger) *Provider {
	if base == nil {
		base = zap.NewNop()
	}
	return &Provider{base: base}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if p == nil {
		return glog.Nop()
	}
	named := p.base
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		named = named.Named(trimmed)
	}
	return &Logger{sugar: named.Sugar()}
}

// Sync flushes buffered entries. Errors from syncing stdout are ignored.
func (p *Provider) Sync() {
	if p == nil {
		return
	}
	_ = p.base.Sync()
}

// Logger adapts a zap sugared logger to glog.Logger and glog.FieldsLogger.
// Trace maps to zap's debug level.
type Logger struct {
	sugar *zap.SugaredLogger
}

func (l *Logger) Trace(msg string, args ...any) { l.sugar.Debugw(msg, normalizeArgs(args)...) }
func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, normalizeArgs(args)...) }
func (l *Logger) Info(msg string, args ...any)  { l.sugar.Infow(msg, normalizeArgs(args)...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, normalizeArgs(args)...) }
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, normalizeArgs(args)...) }
func (l *Logger) Fatal(msg string, args ...any) { l.sugar.Fatalw(msg, normalizeArgs(args)...) }

// WithContext attaches the Lambda request id when ctx carries one.
func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return &Logger{sugar: l.sugar.With("request_id", lc.AwsRequestID)}
	}
	return l
}

func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return &Logger{sugar: l.sugar.With(args...)}
}

// normalizeArgs keeps key/value pairs intact and folds a dangling value
// into an "extra" field so zap does not report a malformed pair.
func normalizeArgs(args []any) []any {
	if len(args)%2 == 0 {
		return args
	}
	out := append([]any(nil), args[:len(args)-1]...)
	return append(out, "extra", args[len(args)-1])
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
