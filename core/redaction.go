package core

import "strings"

const RedactedValue = "[REDACTED]"

func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	case Message:
		return typed.Redacted()
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	sensitiveTokens := []string{
		"code",
		"otp",
		"password",
		"secret",
		"token",
		"authorization",
		"api_key",
		"apikey",
		"access_key",
		"credential",
		"signature",
		"plaintext",
		"ciphertext",
		"message",
		"body",
	}
	for _, token := range sensitiveTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "delivery_id",
		"delivery_type",
		"trigger_source",
		"user_pool_id",
		"region",
		"provider_id",
		"external_id",
		"text_code",
		"error_kind",
		"status_code",
		"request_id":
		return true
	default:
		return false
	}
}

// MaskPhoneNumber keeps the leading "+" and the last four digits.
func MaskPhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	runes := []rune(phone)
	visible := 4
	if len(runes) <= visible {
		return strings.Repeat("*", len(runes))
	}
	var b strings.Builder
	for i, r := range runes {
		switch {
		case i == 0 && r == '+':
			b.WriteRune(r)
		case i >= len(runes)-visible:
			b.WriteRune(r)
		default:
			b.WriteRune('*')
		}
	}
	return b.String()
}

// RedactEventRequest renders the request with the code removed, phone
// numbers masked, and every other user attribute hidden.
func RedactEventRequest(req *EventRequest) map[string]any {
	if req == nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if strings.TrimSpace(req.Type) != "" {
		out["type"] = req.Type
	}
	if req.Code != nil {
		out["code"] = RedactedValue
	}
	if req.UserAttributes != nil {
		attributes := make(map[string]any, len(req.UserAttributes))
		for key, value := range req.UserAttributes {
			if key == AttributePhoneNumber {
				attributes[key] = MaskPhoneNumber(value)
				continue
			}
			attributes[key] = RedactedValue
		}
		out["userAttributes"] = attributes
	}
	if req.ClientMetadata != nil {
		metadata := make(map[string]any, len(req.ClientMetadata))
		for key, value := range req.ClientMetadata {
			metadata[key] = value
		}
		out["clientMetadata"] = redactSensitiveMap(metadata)
	}
	return out
}
