package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
	"github.com/google/uuid"
)

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type serviceBuilder struct {
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	decrypter       CodeDecrypter
	dispatcher      Dispatcher
	now             func() time.Time
	newID           func() string
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithDecrypter(decrypter CodeDecrypter) Option {
	return func(b *serviceBuilder) {
		b.decrypter = decrypter
	}
}

func WithDispatcher(dispatcher Dispatcher) Option {
	return func(b *serviceBuilder) {
		b.dispatcher = dispatcher
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(b *serviceBuilder) {
		b.newID = newID
	}
}

func defaultServiceBuilder() serviceBuilder {
	loggerProvider, logger := glog.Resolve("custom-sender", nil, nil)
	return serviceBuilder{
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// LayeredConfigProvider merges defaults, the loader's values, and runtime
// overrides in that order of precedence.
type LayeredConfigProvider struct {
	Loader  RawConfigLoader
	Runtime map[string]any
}

func NewLayeredConfigProvider(loader RawConfigLoader, runtime map[string]any) *LayeredConfigProvider {
	return &LayeredConfigProvider{Loader: loader, Runtime: runtime}
}

func (p *LayeredConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, defaults.Validate()
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, fmt.Errorf("core: load config: %w", err)
	}

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("environment", 10),
			raw,
			opts.WithSnapshotID[map[string]any]("environment"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			cloneFields(p.Runtime),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	resolved.KMS.KeyIDs = normalizeKeyIDs(resolved.KMS.KeyIDs)
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config) map[string]any {
	return map[string]any{
		"service_name": cfg.ServiceName,
		"kms": map[string]any{
			"region":            cfg.KMS.Region,
			"endpoint":          cfg.KMS.Endpoint,
			"generator_key_id":  cfg.KMS.GeneratorKeyID,
			"key_ids":           append([]string(nil), cfg.KMS.KeyIDs...),
			"access_key_id":     cfg.KMS.AccessKeyID,
			"secret_access_key": cfg.KMS.SecretAccessKey,
			"session_token":     cfg.KMS.SessionToken,
			"commitment_policy": cfg.KMS.CommitmentPolicy,
		},
		"messaging": map[string]any{
			"account_sid":        cfg.Messaging.AccountSID,
			"auth_token":         cfg.Messaging.AuthToken,
			"sender_number":      cfg.Messaging.SenderNumber,
			"base_url":           cfg.Messaging.BaseURL,
			"voice_callback_url": cfg.Messaging.VoiceCallbackURL,
		},
		"legacy_error_message": cfg.LegacyErrorMessage,
		"request_timeout_ms":   cfg.RequestTimeoutMS,
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
		"http": map[string]any{
			"addr": cfg.HTTP.Addr,
		},
	}
}

func normalizeKeyIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
