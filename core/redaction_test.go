package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"delivery_id": "dlv_1",
		"text_code":   DeliveryErrorDispatch,
		"auth_token":  "secret",
		"nested": map[string]any{
			"code":       "123456",
			"request_id": "req_1",
		},
		"preview": ComposeMessage("123456"),
	})

	if redacted["delivery_id"] != "dlv_1" || redacted["text_code"] != DeliveryErrorDispatch {
		t.Fatalf("expected traceability keys to survive, got %#v", redacted)
	}
	if redacted["auth_token"] != RedactedValue {
		t.Fatalf("expected auth_token redacted, got %#v", redacted["auth_token"])
	}
	nested := redacted["nested"].(map[string]any)
	if nested["code"] != RedactedValue || nested["request_id"] != "req_1" {
		t.Fatalf("unexpected nested redaction %#v", nested)
	}
	if redacted["preview"] != "Your verification code is: [REDACTED]" {
		t.Fatalf("expected message value redacted, got %#v", redacted["preview"])
	}
}

func TestRedactEventRequest(t *testing.T) {
	event := testEvent("sms")
	event.Request.ClientMetadata["otp_hint"] = "123"

	out := RedactEventRequest(event.Request)
	if out["code"] != RedactedValue {
		t.Fatalf("expected code redacted, got %#v", out["code"])
	}
	attributes := out["userAttributes"].(map[string]any)
	if attributes["phone_number"] != "+*******4567" {
		t.Fatalf("expected masked phone, got %#v", attributes["phone_number"])
	}
	if attributes["email"] != RedactedValue {
		t.Fatalf("expected other attributes hidden, got %#v", attributes["email"])
	}
	metadata := out["clientMetadata"].(map[string]any)
	if metadata["deliveryType"] != "sms" || metadata["otp_hint"] != RedactedValue {
		t.Fatalf("unexpected metadata %#v", metadata)
	}
	if got := RedactEventRequest(nil); len(got) != 0 {
		t.Fatalf("expected empty map for nil request, got %#v", got)
	}
}
