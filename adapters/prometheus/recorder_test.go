package prometheus

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_CountersUseSanitizedNamesAndTags(t *testing.T) {
	recorder := NewRecorder(nil)
	ctx := context.Background()

	tags := map[string]string{"operation": "deliver", "status": "success", "delivery_type": "sms"}
	recorder.IncCounter(ctx, "custom_sender.deliver.total", 1, tags)
	recorder.IncCounter(ctx, "custom_sender.deliver.total", 2, tags)
	recorder.IncCounter(ctx, "custom_sender.deliver.total", 1, map[string]string{"operation": "deliver", "status": "failure"})

	expected := `
# HELP custom_sender_deliver_total Counter custom_sender_deliver_total.
# TYPE custom_sender_deliver_total counter
custom_sender_deliver_total{delivery_type="",operation="deliver",status="failure"} 1
custom_sender_deliver_total{delivery_type="sms",operation="deliver",status="success"} 3
`
	if err := testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected), "custom_sender_deliver_total"); err != nil {
		t.Fatalf("unexpected counter output: %v", err)
	}
}

func TestRecorder_HistogramObservations(t *testing.T) {
	recorder := NewRecorder(nil, WithNamespace("lambda"), WithBuckets([]float64{10, 100}))
	recorder.ObserveHistogram(context.Background(), "custom_sender.deliver.duration_ms", 42, map[string]string{"status": "success"})
	recorder.ObserveHistogram(context.Background(), "custom_sender.deliver.duration_ms", 7, map[string]string{"status": "success"})

	count := testutil.CollectAndCount(recorder.Registry(), "lambda_custom_sender_deliver_duration_ms")
	if count != 1 {
		t.Fatalf("expected one histogram series, got %d", count)
	}
}

func TestRecorder_HandlerServesExposition(t *testing.T) {
	recorder := NewRecorder(nil)
	recorder.IncCounter(context.Background(), "custom_sender.deliver.total", 1, map[string]string{"status": "success"})

	server := httptest.NewServer(recorder.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `custom_sender_deliver_total{status="success"} 1`) {
		t.Fatalf("expected counter in exposition, got %s", body)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"custom_sender.deliver.total": "custom_sender_deliver_total",
		" 1st-metric ":                "_1st_metric",
		"":                            "",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitize %q: got %q want %q", in, got, want)
		}
	}
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var recorder *Recorder
	recorder.IncCounter(context.Background(), "x", 1, nil)
	recorder.ObserveHistogram(context.Background(), "x", 1, nil)
	if recorder.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}
