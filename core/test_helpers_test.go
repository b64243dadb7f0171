package core

import (
	"context"
	"fmt"
	"sync"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func hasCounter(counters []capturedCounter, name string, status string) bool {
	for _, counter := range counters {
		if counter.name == name && counter.tags["status"] == status {
			return true
		}
	}
	return false
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

// rendered flattens every record so tests can search for leaked values.
func (l *captureLogger) rendered() string {
	out := ""
	for _, record := range l.snapshot() {
		out += fmt.Sprintf("%s %s %v\n", record.level, record.msg, record.fields)
	}
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

type stubDecrypter struct {
	mu    sync.Mutex
	code  string
	err   error
	calls [][]byte
}

func (d *stubDecrypter) DecryptCode(_ context.Context, ciphertext []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, append([]byte(nil), ciphertext...))
	if d.err != nil {
		return "", d.err
	}
	return d.code, nil
}

func (d *stubDecrypter) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	smsErr   error
	voiceErr error
	sms      []SMSRequest
	voice    []VoiceCallRequest
}

func (d *recordingDispatcher) SendSMS(_ context.Context, req SMSRequest) (DispatchReceipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sms = append(d.sms, req)
	if d.smsErr != nil {
		return DispatchReceipt{}, d.smsErr
	}
	return DispatchReceipt{ProviderID: "test", ExternalID: "SM1", Status: "queued"}, nil
}

func (d *recordingDispatcher) StartVoiceCall(_ context.Context, req VoiceCallRequest) (DispatchReceipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.voice = append(d.voice, req)
	if d.voiceErr != nil {
		return DispatchReceipt{}, d.voiceErr
	}
	return DispatchReceipt{ProviderID: "test", ExternalID: "CA1", Status: "queued"}, nil
}

func (d *recordingDispatcher) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sms) + len(d.voice)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.KMS.Region = "us-east-1"
	cfg.KMS.GeneratorKeyID = "alias/custom-sender"
	cfg.KMS.KeyIDs = []string{"arn:aws:kms:us-east-1:111122223333:key/abcd"}
	cfg.Messaging.AccountSID = "AC123"
	cfg.Messaging.AuthToken = "token"
	cfg.Messaging.SenderNumber = "+15550000000"
	return cfg
}

func strPtr(value string) *string {
	return &value
}

func testEvent(deliveryType string) *Event {
	return &Event{
		Version:       "1",
		TriggerSource: "CustomSMSSender_SignUp",
		Region:        "us-east-1",
		UserPoolID:    "us-east-1_pool",
		UserName:      "user-1",
		Request: &EventRequest{
			Type:           "customSMSSenderRequestV1",
			Code:           strPtr("Y2lwaGVydGV4dA=="),
			UserAttributes: map[string]string{"phone_number": "+15551234567", "email": "user@example.com"},
			ClientMetadata: map[string]string{"deliveryType": deliveryType},
		},
	}
}
