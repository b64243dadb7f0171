package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRun_RejectsUnknownMode(t *testing.T) {
	err := run(context.Background(), []string{"deploy"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}

func TestRun_EncryptRequiresCodeAndPhone(t *testing.T) {
	err := run(context.Background(), []string{"encrypt", "-code", "123456"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "-code and -phone are required") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

func TestRun_EncryptRejectsUnknownFlags(t *testing.T) {
	if err := run(context.Background(), []string{"encrypt", "-bogus"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected flag parse error")
	}
}
