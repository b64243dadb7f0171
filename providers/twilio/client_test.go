package twilio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-custom-sender/core"
	"github.com/goliatone/go-custom-sender/providers/devkit"
)

func newFixtureClient(t *testing.T) (*Client, *devkit.MessagingFixture, *devkit.FakeTransportAdapter) {
	t.Helper()
	fixture := devkit.NewMessagingFixture()
	adapter := fixture.Transport()
	client, err := New(Config{AccountSID: "AC123"}, adapter)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, fixture, adapter
}

func TestClient_SendSMS(t *testing.T) {
	client, fixture, adapter := newFixtureClient(t)
	receipt, err := client.SendSMS(context.Background(), core.SMSRequest{
		To:   "+15551234567",
		From: "+15557654321",
		Body: "Your verification code is: 123456",
	})
	if err != nil {
		t.Fatalf("send sms: %v", err)
	}
	if receipt.ProviderID != ProviderID || receipt.ExternalID == "" || receipt.Status != "queued" {
		t.Fatalf("unexpected receipt %#v", receipt)
	}

	request := adapter.Requests()[0]
	if request.URL != "https://api.twilio.com/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected url %q", request.URL)
	}
	if request.Headers["Content-Type"] != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", request.Headers["Content-Type"])
	}
	sent := fixture.Sent()
	if len(sent) != 1 || sent[0].Body != "Your verification code is: 123456" || sent[0].To != "+15551234567" || sent[0].From != "+15557654321" {
		t.Fatalf("unexpected sent message %#v", sent)
	}
}

func TestClient_StartVoiceCall(t *testing.T) {
	client, fixture, adapter := newFixtureClient(t)
	callback := "http://twimlets.com/message?Message[0]=Your%20verification%20code%20is%3A%20123456"
	if _, err := client.StartVoiceCall(context.Background(), core.VoiceCallRequest{
		To:          "+15551234567",
		From:        "+15557654321",
		CallbackURL: callback,
	}); err != nil {
		t.Fatalf("start voice call: %v", err)
	}
	if got := adapter.Requests()[0].URL; got != "https://api.twilio.com/2010-04-01/Accounts/AC123/Calls.json" {
		t.Fatalf("unexpected url %q", got)
	}
	sent := fixture.Sent()
	if len(sent) != 1 || sent[0].Kind != "voice" || sent[0].URL != callback {
		t.Fatalf("unexpected call %#v", sent)
	}
}

func TestClient_MapsAPIErrors(t *testing.T) {
	client, fixture, _ := newFixtureClient(t)
	fixture.FailWith(http.StatusBadRequest, 21211, "The 'To' number is not a valid phone number.")

	_, err := client.SendSMS(context.Background(), core.SMSRequest{To: "+1", From: "+15557654321", Body: "x"})
	if err == nil {
		t.Fatalf("expected api error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != TwilioErrorRejected || rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected rejected envelope, got %v", err)
	}
	if APIErrorCode(err) != 21211 {
		t.Fatalf("expected twilio code 21211, got %d", APIErrorCode(err))
	}

	fixture.FailWith(http.StatusTooManyRequests, 20429, "Too Many Requests")
	_, err = client.SendSMS(context.Background(), core.SMSRequest{To: "+1", From: "+2", Body: "x"})
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit envelope, got %v", err)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest", devkit.TransportScript{Err: errors.New("connection reset")})
	client, err := New(Config{AccountSID: "AC123"}, adapter)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.SendSMS(context.Background(), core.SMSRequest{To: "+1", From: "+2", Body: "x"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != TwilioErrorUnavailable {
		t.Fatalf("expected unavailable envelope, got %v", err)
	}
}

func TestClient_RequiresFields(t *testing.T) {
	client, _, adapter := newFixtureClient(t)
	if _, err := client.SendSMS(context.Background(), core.SMSRequest{To: "+1", From: "+2"}); err == nil {
		t.Fatalf("expected missing body error")
	}
	if _, err := client.StartVoiceCall(context.Background(), core.VoiceCallRequest{To: "+1", From: "+2"}); err == nil {
		t.Fatalf("expected missing url error")
	}
	if adapter.CallCount() != 0 {
		t.Fatalf("expected no transport calls")
	}
	if _, err := New(Config{}, adapter); err == nil {
		t.Fatalf("expected missing account sid error")
	}
	if _, err := New(Config{AccountSID: "AC1"}, nil); err == nil {
		t.Fatalf("expected missing auth token error")
	}
}

func TestClient_DispatcherConformance(t *testing.T) {
	client, _, _ := newFixtureClient(t)
	if err := devkit.ValidateDispatcherConformance(context.Background(), client, "+15551234567", "+15557654321"); err != nil {
		t.Fatalf("dispatcher conformance: %v", err)
	}
}

func TestClient_UsesBasicAuthOverHTTP(t *testing.T) {
	var user, pass, to string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		_ = r.ParseForm()
		to = r.PostForm.Get("To")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer server.Close()

	client, err := New(Config{AccountSID: "AC123", AuthToken: "token", BaseURL: server.URL + "/"}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	receipt, err := client.SendSMS(context.Background(), core.SMSRequest{To: "+15551234567", From: "+2", Body: "x"})
	if err != nil {
		t.Fatalf("send sms: %v", err)
	}
	if user != "AC123" || pass != "token" || to != "+15551234567" || receipt.ExternalID != "SM1" {
		t.Fatalf("unexpected request user=%q pass=%q to=%q receipt=%#v", user, pass, to, receipt)
	}
}
