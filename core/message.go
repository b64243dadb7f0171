package core

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	MessageTemplate         = "Your verification code is: %s"
	DefaultVoiceCallbackURL = "http://twimlets.com/message"
	voiceMessageParam       = "Message[0]"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
)

// ParseChannel matches the selector exactly; "SMS" or " sms" are rejected.
func ParseChannel(value string) (Channel, error) {
	switch Channel(value) {
	case ChannelSMS, ChannelVoice:
		return Channel(value), nil
	default:
		return "", fmt.Errorf("core: unsupported delivery type %q", value)
	}
}

// Message holds the composed notification. Its zero value is empty.
type Message struct {
	code string
}

func ComposeMessage(code string) Message {
	return Message{code: code}
}

func (m Message) String() string {
	return fmt.Sprintf(MessageTemplate, m.code)
}

func (m Message) Redacted() string {
	return fmt.Sprintf(MessageTemplate, RedactedValue)
}

// Format keeps the code out of %v and %s verbs used by loggers.
func (m Message) Format(state fmt.State, verb rune) {
	_, _ = fmt.Fprint(state, m.Redacted())
}

// VoiceCallbackURL appends the message to the text-to-speech endpoint as the
// Message[0] query parameter, percent-encoding it the way browsers'
// encodeURIComponent does.
func VoiceCallbackURL(base string, message Message) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultVoiceCallbackURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("core: invalid voice callback url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("core: voice callback url must be absolute")
	}
	param := voiceMessageParam + "=" + encodeURIComponent(message.String())
	if parsed.RawQuery == "" {
		parsed.RawQuery = param
	} else {
		parsed.RawQuery += "&" + param
	}
	return parsed.String(), nil
}

func encodeURIComponent(value string) string {
	escaped := url.QueryEscape(value)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	for encoded, plain := range map[string]string{
		"%21": "!",
		"%27": "'",
		"%28": "(",
		"%29": ")",
		"%2A": "*",
	} {
		escaped = strings.ReplaceAll(escaped, encoded, plain)
	}
	return escaped
}
