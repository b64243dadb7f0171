package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestServiceObservability_FailureCarriesErrorKind(t *testing.T) {
	svc, logger, metrics := newTestService(t, &stubDecrypter{err: errors.New("kms unavailable")}, &recordingDispatcher{})

	if _, err := svc.Deliver(context.Background(), testEvent("sms")); err == nil {
		t.Fatalf("expected decryption failure")
	}

	var found bool
	for _, counter := range metrics.counters {
		if counter.name != "custom_sender.deliver.total" {
			continue
		}
		found = true
		if counter.tags["status"] != "failure" || counter.tags["error_kind"] != string(ErrorKindDecryption) {
			t.Fatalf("unexpected failure tags %#v", counter.tags)
		}
		if counter.tags["delivery_type"] != "sms" {
			t.Fatalf("expected delivery_type tag, got %#v", counter.tags)
		}
	}
	if !found {
		t.Fatalf("expected deliver counter")
	}
	if len(metrics.histograms) == 0 || metrics.histograms[0].name != "custom_sender.deliver.duration_ms" {
		t.Fatalf("expected duration histogram, got %#v", metrics.histograms)
	}

	var failure *capturedLog
	records := logger.snapshot()
	for i := range records {
		if records[i].msg == "deliver failed" {
			failure = &records[i]
		}
	}
	if failure == nil {
		t.Fatalf("expected deliver failed log, got %#v", records)
	}
	if failure.level != "error" || failure.fields["event_type"] != "deliver" {
		t.Fatalf("unexpected failure log %#v", failure)
	}
	if failure.fields["text_code"] != DeliveryErrorDecryption {
		t.Fatalf("expected text_code %q, got %#v", DeliveryErrorDecryption, failure.fields["text_code"])
	}
	if failure.fields["delivery_id"] != "dlv_1" {
		t.Fatalf("expected delivery id propagation, got %#v", failure.fields["delivery_id"])
	}
}

func TestServiceObservability_NormalizesOperationNames(t *testing.T) {
	svc, logger, metrics := newTestService(t, &stubDecrypter{code: "1"}, &recordingDispatcher{})
	svc.observeOperation(context.Background(), time.Now().UTC(), " Deliver-Raw ", nil, map[string]any{"provider_id": "twilio"})

	if !hasCounter(metrics.counters, "custom_sender.deliver_raw.total", "success") {
		t.Fatalf("expected normalized counter name, got %#v", metrics.counters)
	}
	if metrics.counters[0].tags["provider_id"] != "twilio" {
		t.Fatalf("expected provider tag, got %#v", metrics.counters[0].tags)
	}
	records := logger.snapshot()
	if len(records) != 1 || records[0].msg != "deliver_raw succeeded" || records[0].level != "info" {
		t.Fatalf("unexpected records %#v", records)
	}
}

func TestNopMetricsRecorder_DefaultServiceRecordsNothing(t *testing.T) {
	svc, err := NewService(testConfig(), WithDecrypter(&stubDecrypter{code: "123456"}), WithDispatcher(&recordingDispatcher{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, ok := svc.metricsRecorder.(NopMetricsRecorder); !ok {
		t.Fatalf("expected nop recorder by default, got %T", svc.metricsRecorder)
	}
	if _, err := svc.Deliver(context.Background(), testEvent("sms")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}

func TestCloneTags_CopiesInput(t *testing.T) {
	tags := map[string]string{"status": "success"}
	copied := cloneTags(tags)
	copied["status"] = "failure"
	if tags["status"] != "success" {
		t.Fatalf("expected source tags untouched, got %#v", tags)
	}
	if empty := cloneTags(nil); empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil map, got %#v", empty)
	}
}
