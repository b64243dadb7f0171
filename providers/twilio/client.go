// Package twilio dispatches SMS messages and voice calls through the Twilio
// REST API.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-custom-sender/auth"
	"github.com/goliatone/go-custom-sender/core"
	"github.com/goliatone/go-custom-sender/transport"
)

const (
	ProviderID     = "twilio"
	DefaultBaseURL = "https://api.twilio.com"
	APIVersion     = "2010-04-01"
)

const defaultRequestTimeout = 10 * time.Second

type Config struct {
	AccountSID     string
	AuthToken      string
	BaseURL        string
	RequestTimeout time.Duration
}

// Client implements core.Dispatcher.
type Client struct {
	transport  core.TransportAdapter
	accountSID string
	baseURL    string
	timeout    time.Duration
}

type resource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// New builds a client. When adapter is nil a REST transport authenticated
// with the account SID and auth token is created.
func New(cfg Config, adapter core.TransportAdapter) (*Client, error) {
	accountSID := strings.TrimSpace(cfg.AccountSID)
	if accountSID == "" {
		return nil, configError("twilio: account sid is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if parsed, err := url.Parse(baseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, configError("twilio: base url must be an absolute url")
	}
	if adapter == nil {
		if strings.TrimSpace(cfg.AuthToken) == "" {
			return nil, configError("twilio: auth token is required")
		}
		adapter = transport.NewRESTAdapter(nil,
			transport.WithDefaultHeader("Accept", "application/json"),
			transport.WithSigner(auth.BasicSigner{Username: accountSID, Password: cfg.AuthToken}, core.Credential{}),
		)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		transport:  adapter,
		accountSID: accountSID,
		baseURL:    baseURL,
		timeout:    timeout,
	}, nil
}

func (c *Client) SendSMS(ctx context.Context, req core.SMSRequest) (core.DispatchReceipt, error) {
	if err := requireFields(map[string]string{"to": req.To, "from": req.From, "body": req.Body}); err != nil {
		return core.DispatchReceipt{}, err
	}
	return c.create(ctx, "Messages", url.Values{
		"To":   {strings.TrimSpace(req.To)},
		"From": {strings.TrimSpace(req.From)},
		"Body": {req.Body},
	})
}

func (c *Client) StartVoiceCall(ctx context.Context, req core.VoiceCallRequest) (core.DispatchReceipt, error) {
	if err := requireFields(map[string]string{"to": req.To, "from": req.From, "url": req.CallbackURL}); err != nil {
		return core.DispatchReceipt{}, err
	}
	return c.create(ctx, "Calls", url.Values{
		"To":   {strings.TrimSpace(req.To)},
		"From": {strings.TrimSpace(req.From)},
		"Url":  {strings.TrimSpace(req.CallbackURL)},
	})
}

func (c *Client) create(ctx context.Context, collection string, form url.Values) (core.DispatchReceipt, error) {
	if c == nil || c.transport == nil {
		return core.DispatchReceipt{}, configError("twilio: client is not configured")
	}
	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/%s.json", c.baseURL, APIVersion, url.PathEscape(c.accountSID), collection)
	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method:   http.MethodPost,
		URL:      endpoint,
		Headers:  map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:     []byte(form.Encode()),
		Timeout:  c.timeout,
		Metadata: map[string]any{"provider_id": ProviderID, "resource": collection},
	})
	if err != nil {
		return core.DispatchReceipt{}, goerrors.Wrap(err, goerrors.CategoryExternal, "twilio: create "+strings.ToLower(collection)+" request failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(TwilioErrorUnavailable)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return core.DispatchReceipt{}, parseAPIError(collection, res)
	}
	var created resource
	if err := json.Unmarshal(res.Body, &created); err != nil {
		return core.DispatchReceipt{}, goerrors.Wrap(err, goerrors.CategoryExternal, "twilio: decode "+strings.ToLower(collection)+" response").
			WithCode(http.StatusBadGateway).
			WithTextCode(TwilioErrorUnavailable)
	}
	return core.DispatchReceipt{
		ProviderID: ProviderID,
		ExternalID: created.SID,
		Status:     created.Status,
	}, nil
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{"to", "from", "body", "url"} {
		value, ok := fields[name]
		if ok && strings.TrimSpace(value) == "" {
			return goerrors.NewValidation("twilio: "+name+" is required", goerrors.FieldError{
				Field:   name,
				Message: "required",
			}).WithCode(http.StatusBadRequest).WithTextCode(TwilioErrorInvalidRequest)
		}
	}
	return nil
}

func configError(message string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(TwilioErrorInvalidConfig)
}

var _ core.Dispatcher = (*Client)(nil)
