package devkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-custom-sender/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateDispatcherConformance sends one SMS and one voice call and checks
// both return a receipt with a provider and an external id.
func ValidateDispatcherConformance(ctx context.Context, dispatcher core.Dispatcher, to string, from string) error {
	if dispatcher == nil {
		return fmt.Errorf("devkit: dispatcher is required")
	}
	sms, err := dispatcher.SendSMS(ctx, core.SMSRequest{To: to, From: from, Body: "conformance"})
	if err != nil {
		return fmt.Errorf("devkit: send sms: %w", err)
	}
	if err := validateReceipt(sms); err != nil {
		return err
	}
	voice, err := dispatcher.StartVoiceCall(ctx, core.VoiceCallRequest{
		To:          to,
		From:        from,
		CallbackURL: core.DefaultVoiceCallbackURL + "?Message%5B0%5D=conformance",
	})
	if err != nil {
		return fmt.Errorf("devkit: start voice call: %w", err)
	}
	return validateReceipt(voice)
}

func validateReceipt(receipt core.DispatchReceipt) error {
	if strings.TrimSpace(receipt.ProviderID) == "" {
		return fmt.Errorf("devkit: receipt provider id is required")
	}
	if strings.TrimSpace(receipt.ExternalID) == "" {
		return fmt.Errorf("devkit: receipt external id is required")
	}
	return nil
}
