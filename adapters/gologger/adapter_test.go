package gologger

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	glog "github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-custom-sender/core"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("custom-sender", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("custom-sender", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("custom-sender", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestProvider_WritesStructuredEntries(t *testing.T) {
	zapCore, logs := observer.New(zapcore.DebugLevel)
	provider := NewProvider(zap.New(zapCore))

	logger := provider.GetLogger("custom-sender")
	logger.Info("deliver succeeded", "delivery_type", "sms", "duration_ms", int64(12))
	logger.Trace("trace line", "dangling")

	fields, ok := logger.(glog.FieldsLogger)
	if !ok {
		t.Fatalf("expected fields logger")
	}
	fields.WithFields(map[string]any{"provider_id": "twilio"}).Warn("slow provider")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected three entries, got %d", len(entries))
	}
	first := entries[0]
	if first.Message != "deliver succeeded" || first.LoggerName != "custom-sender" || first.Level != zapcore.InfoLevel {
		t.Fatalf("unexpected first entry %#v", first.Entry)
	}
	if first.ContextMap()["delivery_type"] != "sms" {
		t.Fatalf("expected delivery_type field, got %#v", first.ContextMap())
	}
	if entries[1].Level != zapcore.DebugLevel || entries[1].ContextMap()["extra"] != "dangling" {
		t.Fatalf("expected trace at debug with folded extra, got %#v", entries[1].ContextMap())
	}
	if entries[2].ContextMap()["provider_id"] != "twilio" {
		t.Fatalf("expected WithFields context, got %#v", entries[2].ContextMap())
	}
}

func TestLogger_WithContextAddsLambdaRequestID(t *testing.T) {
	zapCore, logs := observer.New(zapcore.InfoLevel)
	logger := NewProvider(zap.New(zapCore)).GetLogger("")

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-42"})
	logger.WithContext(ctx).Info("hello")
	logger.WithContext(context.Background()).Info("plain")

	entries := logs.All()
	if entries[0].ContextMap()["request_id"] != "req-42" {
		t.Fatalf("expected request id, got %#v", entries[0].ContextMap())
	}
	if _, ok := entries[1].ContextMap()["request_id"]; ok {
		t.Fatalf("expected no request id without lambda context")
	}
}

func TestNewZapLogger_AcceptsConfig(t *testing.T) {
	for _, cfg := range []core.LogConfig{
		{Level: "debug", Format: "console"},
		{Level: "bogus", Format: "json"},
		{},
	} {
		logger, err := NewZapLogger(cfg)
		if err != nil {
			t.Fatalf("new zap logger %#v: %v", cfg, err)
		}
		if logger == nil {
			t.Fatalf("expected logger")
		}
	}
	logger, _ := NewZapLogger(core.LogConfig{Level: "warn"})
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be disabled at warn level")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type capturingLogger struct {
	id string
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Info(string, ...any)  {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
