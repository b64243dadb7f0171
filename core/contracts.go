package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// CodeDecrypter unwraps the ciphertext bytes of a verification code.
type CodeDecrypter interface {
	DecryptCode(ctx context.Context, ciphertext []byte) (string, error)
}

type SMSRequest struct {
	To   string
	From string
	Body string
}

type VoiceCallRequest struct {
	To          string
	From        string
	CallbackURL string
}

type DispatchReceipt struct {
	ProviderID string
	ExternalID string
	Status     string
}

type Dispatcher interface {
	SendSMS(ctx context.Context, req SMSRequest) (DispatchReceipt, error)
	StartVoiceCall(ctx context.Context, req VoiceCallRequest) (DispatchReceipt, error)
}

type Credential struct {
	AccessToken string
	Metadata    map[string]any
}

type Signer interface {
	Sign(ctx context.Context, req *http.Request, cred Credential) error
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}
