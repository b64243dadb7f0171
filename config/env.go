// Package config reads deployment settings from the process environment and
// an optional .env file into the raw map consumed by core's layered config
// provider.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/goliatone/go-custom-sender/core"
)

const DefaultDotEnvPath = ".env"

type valueKind int

const (
	kindString valueKind = iota
	kindList
	kindBool
	kindTimeout
)

type binding struct {
	env  string
	path []string
	kind valueKind
}

var bindings = []binding{
	{env: "SERVICE_NAME", path: []string{"service_name"}},
	{env: "AWS_REGION", path: []string{"kms", "region"}},
	{env: "KMS_ENDPOINT", path: []string{"kms", "endpoint"}},
	{env: "KEY_ALIAS", path: []string{"kms", "generator_key_id"}},
	{env: "KEY_ARN", path: []string{"kms", "key_ids"}, kind: kindList},
	{env: "AWS_ACCESS_KEY_ID", path: []string{"kms", "access_key_id"}},
	{env: "AWS_SECRET_ACCESS_KEY", path: []string{"kms", "secret_access_key"}},
	{env: "AWS_SESSION_TOKEN", path: []string{"kms", "session_token"}},
	{env: "COMMITMENT_POLICY", path: []string{"kms", "commitment_policy"}},
	{env: "TWILIO_ACCOUNT_SID", path: []string{"messaging", "account_sid"}},
	{env: "TWILIO_AUTH_TOKEN", path: []string{"messaging", "auth_token"}},
	{env: "TWILIO_PHONE_NUMBER", path: []string{"messaging", "sender_number"}},
	{env: "TWILIO_BASE_URL", path: []string{"messaging", "base_url"}},
	{env: "VOICE_CALLBACK_URL", path: []string{"messaging", "voice_callback_url"}},
	{env: "LEGACY_ERROR_MESSAGE", path: []string{"legacy_error_message"}, kind: kindBool},
	{env: "REQUEST_TIMEOUT", path: []string{"request_timeout_ms"}, kind: kindTimeout},
	{env: "LOG_LEVEL", path: []string{"log", "level"}},
	{env: "LOG_FORMAT", path: []string{"log", "format"}},
	{env: "HTTP_ADDR", path: []string{"http", "addr"}},
}

// EnvLoader implements core.RawConfigLoader. Process variables win over
// values read from DotEnvPaths; missing .env files are ignored.
type EnvLoader struct {
	Lookup      func(string) (string, bool)
	DotEnvPaths []string
}

func NewEnvLoader(dotEnvPaths ...string) *EnvLoader {
	if len(dotEnvPaths) == 0 {
		dotEnvPaths = []string{DefaultDotEnvPath}
	}
	return &EnvLoader{Lookup: os.LookupEnv, DotEnvPaths: dotEnvPaths}
}

func (l *EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := os.LookupEnv
	var paths []string
	if l != nil {
		if l.Lookup != nil {
			lookup = l.Lookup
		}
		paths = l.DotEnvPaths
	}
	dotenv, err := readDotEnv(paths)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{}
	for _, b := range bindings {
		value, ok := lookup(b.env)
		if !ok {
			value, ok = dotenv[b.env]
		}
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		parsed, err := b.parse(value)
		if err != nil {
			return nil, err
		}
		setPath(raw, b.path, parsed)
	}
	return raw, nil
}

func (b binding) parse(value string) (any, error) {
	switch b.kind {
	case kindList:
		return splitList(value), nil
	case kindBool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("config: %s must be a boolean: %w", b.env, err)
		}
		return parsed, nil
	case kindTimeout:
		return parseTimeoutMS(b.env, value)
	default:
		return value, nil
	}
}

// parseTimeoutMS accepts a Go duration ("5s") or a bare number of
// milliseconds.
func parseTimeoutMS(name, value string) (int, error) {
	if ms, err := strconv.Atoi(value); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("config: %s must not be negative", name)
		}
		return ms, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration or milliseconds: %w", name, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", name)
	}
	return int(duration / time.Millisecond), nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func readDotEnv(paths []string) (map[string]string, error) {
	merged := map[string]string{}
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		// Earlier files win, matching godotenv.Load.
		for key, value := range values {
			if _, exists := merged[key]; !exists {
				merged[key] = value
			}
		}
	}
	return merged, nil
}

func setPath(target map[string]any, path []string, value any) {
	current := target
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// Load resolves the full configuration: defaults, then environment, then
// runtime overrides.
func Load(ctx context.Context, runtime map[string]any, dotEnvPaths ...string) (core.Config, error) {
	provider := core.NewLayeredConfigProvider(NewEnvLoader(dotEnvPaths...), runtime)
	return provider.Load(ctx, core.DefaultConfig())
}

var _ core.RawConfigLoader = (*EnvLoader)(nil)
