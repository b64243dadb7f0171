package core

import (
	"fmt"
	"strings"
)

type KMSConfig struct {
	Region           string   `koanf:"region" mapstructure:"region"`
	Endpoint         string   `koanf:"endpoint" mapstructure:"endpoint"`
	GeneratorKeyID   string   `koanf:"generator_key_id" mapstructure:"generator_key_id"`
	KeyIDs           []string `koanf:"key_ids" mapstructure:"key_ids"`
	AccessKeyID      string   `koanf:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey  string   `koanf:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken     string   `koanf:"session_token" mapstructure:"session_token"`
	CommitmentPolicy string   `koanf:"commitment_policy" mapstructure:"commitment_policy"`
}

type MessagingConfig struct {
	AccountSID       string `koanf:"account_sid" mapstructure:"account_sid"`
	AuthToken        string `koanf:"auth_token" mapstructure:"auth_token"`
	SenderNumber     string `koanf:"sender_number" mapstructure:"sender_number"`
	BaseURL          string `koanf:"base_url" mapstructure:"base_url"`
	VoiceCallbackURL string `koanf:"voice_callback_url" mapstructure:"voice_callback_url"`
}

type LogConfig struct {
	Level  string `koanf:"level" mapstructure:"level"`
	Format string `koanf:"format" mapstructure:"format"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type Config struct {
	ServiceName        string          `koanf:"service_name" mapstructure:"service_name"`
	KMS                KMSConfig       `koanf:"kms" mapstructure:"kms"`
	Messaging          MessagingConfig `koanf:"messaging" mapstructure:"messaging"`
	LegacyErrorMessage bool            `koanf:"legacy_error_message" mapstructure:"legacy_error_message"`
	RequestTimeoutMS   int             `koanf:"request_timeout_ms" mapstructure:"request_timeout_ms"`
	Log                LogConfig       `koanf:"log" mapstructure:"log"`
	HTTP               HTTPConfig      `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "custom-sender",
		KMS: KMSConfig{
			CommitmentPolicy: "require_encrypt_allow_decrypt",
		},
		Messaging: MessagingConfig{
			BaseURL:          "https://api.twilio.com",
			VoiceCallbackURL: DefaultVoiceCallbackURL,
		},
		LegacyErrorMessage: true,
		RequestTimeoutMS:   10000,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.KMS.Region) == "" {
		return fmt.Errorf("core: kms region is required")
	}
	if strings.TrimSpace(c.KMS.GeneratorKeyID) == "" && len(c.KMS.KeyIDs) == 0 {
		return fmt.Errorf("core: kms generator_key_id or key_ids is required")
	}
	if strings.TrimSpace(c.Messaging.AccountSID) == "" {
		return fmt.Errorf("core: messaging account_sid is required")
	}
	if strings.TrimSpace(c.Messaging.AuthToken) == "" {
		return fmt.Errorf("core: messaging auth_token is required")
	}
	if strings.TrimSpace(c.Messaging.SenderNumber) == "" {
		return fmt.Errorf("core: messaging sender_number is required")
	}
	if c.RequestTimeoutMS < 0 {
		return fmt.Errorf("core: request_timeout_ms must not be negative")
	}
	return nil
}
