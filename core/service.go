package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service runs one delivery per call. It holds only read-only collaborators
// and is safe for concurrent use.
type Service struct {
	config          Config
	decrypter       CodeDecrypter
	dispatcher      Dispatcher
	logger          Logger
	metricsRecorder MetricsRecorder
	now             func() time.Time
	newID           func() string
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("custom-sender", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("custom-sender"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.decrypter == nil {
		return nil, fmt.Errorf("core: code decrypter is required")
	}
	if builder.dispatcher == nil {
		return nil, fmt.Errorf("core: dispatcher is required")
	}
	if strings.TrimSpace(cfg.Messaging.SenderNumber) == "" {
		return nil, fmt.Errorf("core: messaging sender_number is required")
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	if builder.newID == nil {
		builder.newID = func() string { return "" }
	}

	return &Service{
		config:          cfg,
		decrypter:       builder.decrypter,
		dispatcher:      builder.dispatcher,
		logger:          logger,
		metricsRecorder: builder.metricsRecorder,
		now:             builder.now,
		newID:           builder.newID,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// Deliver validates the event, decrypts the code, composes the message and
// hands it to the channel the event selects. On success it returns event
// itself.
func (s *Service) Deliver(ctx context.Context, event *Event) (out *Event, err error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := s.now()
	fields := event.logContext()
	fields["delivery_id"] = s.newID()
	defer func() {
		s.observeOperation(ctx, startedAt, "deliver", err, fields)
	}()

	delivery, err := event.Validate()
	if err != nil {
		return nil, err
	}
	channel, err := ParseChannel(delivery.DeliveryType)
	if err != nil {
		return nil, newDeliveryError(ErrorKindInvalidChannel, err, event.logContext())
	}

	code, err := s.decryptCode(ctx, delivery, fields)
	if err != nil {
		return nil, newDeliveryError(ErrorKindDecryption, err, event.logContext())
	}
	message := ComposeMessage(code)
	s.logDebug(ctx, "message composed", map[string]any{
		"delivery_id": fields["delivery_id"],
		"preview":     message.Redacted(),
	})

	receipt, err := s.dispatch(ctx, channel, delivery.PhoneNumber, message)
	if err != nil {
		tagged := newDeliveryError(ErrorKindDispatch, err, event.logContext())
		s.logError(ctx, "delivery dispatch failed", mergeFields(fields, map[string]any{
			"error":              tagged.Error(),
			"provider_text_code": providerTextCode(err),
		}))
		return nil, tagged
	}
	fields["provider_id"] = receipt.ProviderID
	fields["external_id"] = receipt.ExternalID
	return event, nil
}

// DeliverRaw is the JSON surface used by hosts. On success the input bytes
// are returned unchanged.
func (s *Service) DeliverRaw(ctx context.Context, raw []byte) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	event, err := ParseEvent(raw)
	if err != nil {
		return nil, s.hostError(nil, err)
	}
	if _, err := s.Deliver(ctx, event); err != nil {
		return nil, s.hostError(event, err)
	}
	return raw, nil
}

func (s *Service) hostError(event *Event, err error) error {
	if err == nil {
		return nil
	}
	if !s.config.LegacyErrorMessage {
		return err
	}
	return &HostError{Message: LegacyErrorMessage(event, err), Err: err}
}

func (s *Service) decryptCode(ctx context.Context, delivery Delivery, fields map[string]any) (string, error) {
	ciphertext, err := decodeBase64(delivery.EncryptedCode)
	if err != nil {
		s.logError(ctx, "decode encrypted code failed", mergeFields(fields, map[string]any{"error": err.Error()}))
		return "", err
	}
	code, err := s.decrypter.DecryptCode(ctx, ciphertext)
	if err != nil {
		s.logError(ctx, "code decryption failed", mergeFields(fields, map[string]any{"error": err.Error()}))
		return "", err
	}
	return code, nil
}

func (s *Service) dispatch(ctx context.Context, channel Channel, to string, message Message) (DispatchReceipt, error) {
	from := strings.TrimSpace(s.config.Messaging.SenderNumber)
	switch channel {
	case ChannelSMS:
		return s.dispatcher.SendSMS(ctx, SMSRequest{
			To:   to,
			From: from,
			Body: message.String(),
		})
	case ChannelVoice:
		callbackURL, err := VoiceCallbackURL(s.config.Messaging.VoiceCallbackURL, message)
		if err != nil {
			return DispatchReceipt{}, err
		}
		return s.dispatcher.StartVoiceCall(ctx, VoiceCallRequest{
			To:          to,
			From:        from,
			CallbackURL: callbackURL,
		})
	default:
		return DispatchReceipt{}, fmt.Errorf("core: unsupported delivery type %q", channel)
	}
}

func mergeFields(base map[string]any, extra map[string]any) map[string]any {
	merged := cloneFields(base)
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}

func providerTextCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}
