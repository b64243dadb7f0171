package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-custom-sender/core"
)

// SentMessage is one request accepted by MessagingFixture.
type SentMessage struct {
	Kind string
	To   string
	From string
	Body string
	URL  string
}

// MessagingFixture answers the Messages.json and Calls.json endpoints of the
// Twilio REST API and records what was sent.
type MessagingFixture struct {
	mu       sync.Mutex
	sent     []SentMessage
	failure  *messagingFailure
	sequence int
}

type messagingFailure struct {
	status  int
	code    int
	message string
}

func NewMessagingFixture() *MessagingFixture {
	return &MessagingFixture{}
}

// FailWith makes every following request fail with a Twilio error document.
func (f *MessagingFixture) FailWith(status int, code int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failure = &messagingFailure{status: status, code: code, message: message}
}

func (f *MessagingFixture) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.sent...)
}

func (f *MessagingFixture) Transport() *FakeTransportAdapter {
	return NewRespondingTransportAdapter("rest", f.Handle)
}

func (f *MessagingFixture) Handle(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failure != nil {
		body, _ := json.Marshal(map[string]any{
			"code":      f.failure.code,
			"message":   f.failure.message,
			"more_info": fmt.Sprintf("https://www.twilio.com/docs/errors/%d", f.failure.code),
			"status":    f.failure.status,
		})
		return core.TransportResponse{StatusCode: f.failure.status, Body: body}, nil
	}
	if !strings.EqualFold(req.Method, http.MethodPost) {
		return core.TransportResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}

	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: parse form body: %w", err)
	}
	f.sequence++
	var kind, prefix string
	switch {
	case strings.HasSuffix(req.URL, "/Messages.json"):
		kind, prefix = "sms", "SM"
	case strings.HasSuffix(req.URL, "/Calls.json"):
		kind, prefix = "voice", "CA"
	default:
		return core.TransportResponse{StatusCode: http.StatusNotFound, Body: []byte(`{"code":20404,"message":"not found","status":404}`)}, nil
	}
	f.sent = append(f.sent, SentMessage{
		Kind: kind,
		To:   form.Get("To"),
		From: form.Get("From"),
		Body: form.Get("Body"),
		URL:  form.Get("Url"),
	})
	body, _ := json.Marshal(map[string]any{
		"sid":    fmt.Sprintf("%s%032d", prefix, f.sequence),
		"status": "queued",
		"to":     form.Get("To"),
		"from":   form.Get("From"),
	})
	return core.TransportResponse{
		StatusCode: http.StatusCreated,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}, nil
}
