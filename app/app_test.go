package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-custom-sender/core"
	"github.com/goliatone/go-custom-sender/providers/devkit"
)

const (
	generatorAlias = "alias/custom-sender"
	generatorARN   = "arn:aws:kms:us-east-1:111122223333:key/aaaa"
)

type harness struct {
	app       *App
	kms       *devkit.KMSFixture
	messaging *devkit.MessagingFixture
	logs      *observer.ObservedLogs
}

func testConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.KMS.Region = "us-east-1"
	cfg.KMS.GeneratorKeyID = generatorAlias
	cfg.KMS.KeyIDs = []string{generatorARN}
	cfg.KMS.AccessKeyID = "AKIDEXAMPLE"
	cfg.KMS.SecretAccessKey = "kms-secret"
	cfg.Messaging.AccountSID = "AC00000000000000000000000000000001"
	cfg.Messaging.AuthToken = "auth-token"
	cfg.Messaging.SenderNumber = "+15550000000"
	return cfg
}

func newHarness(t *testing.T, cfg core.Config) *harness {
	t.Helper()
	kms := devkit.NewKMSFixture(generatorARN)
	kms.AddAlias(generatorAlias, generatorARN)
	messaging := devkit.NewMessagingFixture()
	zapCore, logs := observer.New(zapcore.DebugLevel)

	built, err := Build(context.Background(), cfg,
		WithKMSTransport(kms.Transport()),
		WithMessagingTransport(messaging.Transport()),
		WithZapLogger(zap.New(zapCore)),
	)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	return &harness{app: built, kms: kms, messaging: messaging, logs: logs}
}

func (h *harness) eventJSON(t *testing.T, code, deliveryType string) []byte {
	t.Helper()
	event, err := h.app.EncryptEvent(context.Background(), code, "+15551234567", deliveryType)
	if err != nil {
		t.Fatalf("encrypt event: %v", err)
	}
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func TestBuild_DeliversSMSEndToEnd(t *testing.T) {
	h := newHarness(t, testConfig())
	raw := h.eventJSON(t, "482913", "sms")

	out, err := h.app.Service.DeliverRaw(context.Background(), raw)
	if err != nil {
		t.Fatalf("deliver raw: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatalf("expected input bytes back unchanged")
	}
	sent := h.messaging.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sent))
	}
	if sent[0].Kind != "sms" || sent[0].Body != "Your verification code is: 482913" {
		t.Fatalf("unexpected message %#v", sent[0])
	}
	if sent[0].From != "+15550000000" || sent[0].To != "+15551234567" {
		t.Fatalf("unexpected addressing %#v", sent[0])
	}
	if h.kms.Calls("Decrypt") != 1 {
		t.Fatalf("expected one kms decrypt, got %d", h.kms.Calls("Decrypt"))
	}
	for _, entry := range h.logs.All() {
		if strings.Contains(entry.Message, "482913") {
			t.Fatalf("code leaked into log message %q", entry.Message)
		}
		for key, value := range entry.ContextMap() {
			if strings.Contains(fmtValue(value), "482913") {
				t.Fatalf("code leaked into log field %s", key)
			}
		}
	}
}

func TestBuild_DeliversVoiceEndToEnd(t *testing.T) {
	h := newHarness(t, testConfig())
	raw := h.eventJSON(t, "123 456", "voice")

	if _, err := h.app.Service.DeliverRaw(context.Background(), raw); err != nil {
		t.Fatalf("deliver raw: %v", err)
	}
	sent := h.messaging.Sent()
	if len(sent) != 1 || sent[0].Kind != "voice" {
		t.Fatalf("expected one call, got %#v", sent)
	}
	want := "http://twimlets.com/message?Message[0]=Your%20verification%20code%20is%3A%20123%20456"
	if sent[0].URL != want {
		t.Fatalf("unexpected callback url %q", sent[0].URL)
	}
}

func TestBuild_TamperedCodeDoesNotDispatch(t *testing.T) {
	h := newHarness(t, testConfig())
	event, err := h.app.EncryptEvent(context.Background(), "111111", "+15551234567", "sms")
	if err != nil {
		t.Fatalf("encrypt event: %v", err)
	}
	tampered := []byte(*event.Request.Code)
	tampered[len(tampered)/2] ^= 0x01
	code := string(tampered)
	event.Request.Code = &code

	_, err = h.app.Service.Deliver(context.Background(), event)
	if !errors.Is(err, core.ErrDecryption) {
		t.Fatalf("expected decryption error, got %v", err)
	}
	if len(h.messaging.Sent()) != 0 {
		t.Fatalf("expected no dispatch")
	}
}

func TestBuild_ProviderRejectionIsDispatchError(t *testing.T) {
	h := newHarness(t, testConfig())
	h.messaging.FailWith(http.StatusBadRequest, 21211, "Invalid 'To' Phone Number")
	raw := h.eventJSON(t, "222222", "sms")

	out, err := h.app.Service.DeliverRaw(context.Background(), raw)
	if out != nil {
		t.Fatalf("expected no output on failure")
	}
	if !errors.Is(err, core.ErrDispatch) {
		t.Fatalf("expected dispatch error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), core.LegacyErrorPrefix) {
		t.Fatalf("expected legacy message prefix, got %q", err.Error())
	}
	if strings.Contains(err.Error(), "+15551234567") {
		t.Fatalf("expected masked phone in legacy message")
	}
}

func TestBuild_ProviderMessageNeverEchoesRecipient(t *testing.T) {
	for _, legacy := range []bool{true, false} {
		cfg := testConfig()
		cfg.LegacyErrorMessage = legacy
		h := newHarness(t, cfg)
		h.messaging.FailWith(http.StatusBadRequest, 21211, "The 'To' number +15551234567 is not a valid phone number.")
		raw := h.eventJSON(t, "515151", "sms")

		_, err := h.app.Service.DeliverRaw(context.Background(), raw)
		if !errors.Is(err, core.ErrDispatch) {
			t.Fatalf("legacy=%v: expected dispatch error, got %v", legacy, err)
		}
		if strings.Contains(err.Error(), "+15551234567") {
			t.Fatalf("legacy=%v: recipient leaked into error %q", legacy, err.Error())
		}
		if !strings.Contains(err.Error(), "21211") {
			t.Fatalf("legacy=%v: expected provider code in error %q", legacy, err.Error())
		}
		for _, entry := range h.logs.All() {
			if strings.Contains(entry.Message, "+15551234567") {
				t.Fatalf("legacy=%v: recipient leaked into log message %q", legacy, entry.Message)
			}
			for key, value := range entry.ContextMap() {
				if strings.Contains(fmtValue(value), "+15551234567") {
					t.Fatalf("legacy=%v: recipient leaked into log field %s", legacy, key)
				}
			}
		}
	}
}

func TestBuild_InvalidChannelSkipsKMS(t *testing.T) {
	h := newHarness(t, testConfig())
	raw := h.eventJSON(t, "333333", "email")
	before := h.kms.Calls("Decrypt")

	if _, err := h.app.Service.DeliverRaw(context.Background(), raw); !errors.Is(err, core.ErrInvalidChannel) {
		t.Fatalf("expected invalid channel, got %v", err)
	}
	if h.kms.Calls("Decrypt") != before {
		t.Fatalf("expected no decrypt call for invalid channel")
	}
}

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Messaging.SenderNumber = ""
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected missing sender number to fail")
	}

	cfg = testConfig()
	cfg.KMS.CommitmentPolicy = "sometimes"
	if _, err := Build(context.Background(), cfg, WithZapLogger(zap.NewNop())); err == nil {
		t.Fatalf("expected unknown commitment policy to fail")
	}
}

func fmtValue(value any) string {
	raw, _ := json.Marshal(value)
	return string(raw)
}
