// Package app is the single build step that turns a resolved configuration
// into a ready delivery service with its clients.
package app

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	customsender "github.com/goliatone/go-custom-sender"
	"github.com/goliatone/go-custom-sender/adapters/gologger"
	"github.com/goliatone/go-custom-sender/adapters/prometheus"
	"github.com/goliatone/go-custom-sender/core"
	"github.com/goliatone/go-custom-sender/httpapi"
	"github.com/goliatone/go-custom-sender/providers/awskms"
	"github.com/goliatone/go-custom-sender/providers/twilio"
	"github.com/goliatone/go-custom-sender/security"
)

// App holds the clients built once per process. Everything in it is safe
// for concurrent invocations.
type App struct {
	Config   core.Config
	Service  *core.Service
	Security *security.Client
	Keyring  *security.KMSKeyring
	KMS      *awskms.Client
	Twilio   *twilio.Client
	Metrics  *prometheus.Recorder
	Loggers  *gologger.Provider
	Logger   glog.Logger
}

type buildOptions struct {
	kmsTransport       core.TransportAdapter
	messagingTransport core.TransportAdapter
	zapLogger          *zap.Logger
	registry           *promclient.Registry
	serviceOptions     []core.Option
}

type Option func(*buildOptions)

// WithKMSTransport replaces the signed REST transport used for KMS.
func WithKMSTransport(adapter core.TransportAdapter) Option {
	return func(o *buildOptions) {
		o.kmsTransport = adapter
	}
}

// WithMessagingTransport replaces the basic-auth REST transport used for
// the messaging provider.
func WithMessagingTransport(adapter core.TransportAdapter) Option {
	return func(o *buildOptions) {
		o.messagingTransport = adapter
	}
}

func WithZapLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) {
		o.zapLogger = logger
	}
}

func WithRegistry(registry *promclient.Registry) Option {
	return func(o *buildOptions) {
		o.registry = registry
	}
}

func WithServiceOptions(opts ...core.Option) Option {
	return func(o *buildOptions) {
		o.serviceOptions = append(o.serviceOptions, opts...)
	}
}

func Build(_ context.Context, cfg core.Config, opts ...Option) (*App, error) {
	options := buildOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	zapLogger := options.zapLogger
	if zapLogger == nil {
		built, err := gologger.NewZapLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		zapLogger = built
	}
	loggers := gologger.NewProvider(zapLogger)
	_, logger := gologger.Resolve(cfg.ServiceName, loggers, nil)
	metrics := prometheus.NewRecorder(options.registry)

	timeout := time.Duration(cfg.RequestTimeoutMS) * time.Millisecond

	kmsClient, err := awskms.New(awskms.Config{
		Region:          cfg.KMS.Region,
		Endpoint:        cfg.KMS.Endpoint,
		AccessKeyID:     cfg.KMS.AccessKeyID,
		SecretAccessKey: cfg.KMS.SecretAccessKey,
		SessionToken:    cfg.KMS.SessionToken,
		RequestTimeout:  timeout,
	}, options.kmsTransport)
	if err != nil {
		return nil, fmt.Errorf("app: kms client: %w", err)
	}
	keyring, err := security.NewKMSKeyring(kmsClient, cfg.KMS.GeneratorKeyID, cfg.KMS.KeyIDs...)
	if err != nil {
		return nil, fmt.Errorf("app: kms keyring: %w", err)
	}
	policy, err := security.ParseCommitmentPolicy(cfg.KMS.CommitmentPolicy)
	if err != nil {
		return nil, fmt.Errorf("app: commitment policy: %w", err)
	}
	securityClient, err := security.NewClient(keyring, security.WithCommitmentPolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("app: encryption client: %w", err)
	}

	twilioClient, err := twilio.New(twilio.Config{
		AccountSID:     cfg.Messaging.AccountSID,
		AuthToken:      cfg.Messaging.AuthToken,
		BaseURL:        cfg.Messaging.BaseURL,
		RequestTimeout: timeout,
	}, options.messagingTransport)
	if err != nil {
		return nil, fmt.Errorf("app: messaging client: %w", err)
	}

	serviceOptions := append([]core.Option{
		core.WithLoggerProvider(loggers),
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithDecrypter(security.CodeDecrypter{Client: securityClient}),
		core.WithDispatcher(twilioClient),
	}, options.serviceOptions...)
	service, err := core.NewService(cfg, serviceOptions...)
	if err != nil {
		return nil, fmt.Errorf("app: service: %w", err)
	}

	return &App{
		Config:   cfg,
		Service:  service,
		Security: securityClient,
		Keyring:  keyring,
		KMS:      kmsClient,
		Twilio:   twilioClient,
		Metrics:  metrics,
		Loggers:  loggers,
		Logger:   logger,
	}, nil
}

// Facade exposes the service through the deliver-code command.
func (a *App) Facade() *customsender.Facade {
	facade, _ := customsender.NewFacade(a.Service)
	return facade
}

// HTTPHandler builds the chi surface over the service.
func (a *App) HTTPHandler() *httpapi.Handler {
	return httpapi.New(
		a.Facade(),
		httpapi.WithMetricsHandler(a.Metrics.Handler()),
		httpapi.WithLogger(a.Loggers.GetLogger("httpapi")),
	)
}

// EncryptEvent builds a ready-to-send trigger event whose code is encrypted
// under the configured keyring.
func (a *App) EncryptEvent(ctx context.Context, code string, phone string, deliveryType string) (*core.Event, error) {
	encrypted, err := a.Security.EncryptCode(ctx, code, nil)
	if err != nil {
		return nil, err
	}
	return &core.Event{
		Version:       "1",
		TriggerSource: core.TriggerCustomSMSSender + "SignUp",
		Region:        a.Config.KMS.Region,
		Request: &core.EventRequest{
			Type:           "customSMSSenderRequestV1",
			Code:           &encrypted,
			UserAttributes: map[string]string{core.AttributePhoneNumber: phone},
			ClientMetadata: map[string]string{core.MetadataDeliveryType: deliveryType},
		},
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Loggers.Sync()
}
