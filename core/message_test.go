package core

import (
	"fmt"
	"strings"
	"testing"
)

func TestComposeMessage(t *testing.T) {
	message := ComposeMessage("123456")
	if message.String() != "Your verification code is: 123456" {
		t.Fatalf("unexpected message %q", message.String())
	}
	if message.Redacted() != "Your verification code is: [REDACTED]" {
		t.Fatalf("unexpected redacted message %q", message.Redacted())
	}
	if formatted := fmt.Sprintf("%v %s", message, message); strings.Contains(formatted, "123456") {
		t.Fatalf("expected fmt verbs to redact, got %q", formatted)
	}
}

func TestParseChannel(t *testing.T) {
	for _, valid := range []string{"sms", "voice"} {
		if _, err := ParseChannel(valid); err != nil {
			t.Fatalf("expected %q to be valid: %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "email", "SMS", " voice"} {
		if _, err := ParseChannel(invalid); err == nil {
			t.Fatalf("expected %q to be rejected", invalid)
		}
	}
}

func TestVoiceCallbackURL(t *testing.T) {
	got, err := VoiceCallbackURL("", ComposeMessage("12(3)"))
	if err != nil {
		t.Fatalf("callback url: %v", err)
	}
	want := "http://twimlets.com/message?Message[0]=Your%20verification%20code%20is%3A%2012(3)"
	if got != want {
		t.Fatalf("unexpected url:\n got %s\nwant %s", got, want)
	}

	got, err = VoiceCallbackURL("https://tts.example/say?voice=alice", ComposeMessage("1"))
	if err != nil {
		t.Fatalf("callback url with query: %v", err)
	}
	if !strings.HasPrefix(got, "https://tts.example/say?voice=alice&Message[0]=") {
		t.Fatalf("expected existing query to be kept, got %s", got)
	}

	if _, err := VoiceCallbackURL("/relative", ComposeMessage("1")); err == nil {
		t.Fatalf("expected relative url to be rejected")
	}
}

func TestMaskPhoneNumber(t *testing.T) {
	cases := map[string]string{
		"+15551234567": "+*******4567",
		"5551234567":   "******4567",
		"123":          "***",
		"":             "",
	}
	for in, want := range cases {
		if got := MaskPhoneNumber(in); got != want {
			t.Fatalf("mask %q: got %q want %q", in, got, want)
		}
	}
}
