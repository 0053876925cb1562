package audit

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetEnabled(t *testing.T) {
	Set(false)
	if Enabled() {
		t.Fatalf("expected disabled after Set(false)")
	}
	Set(true)
	if !Enabled() {
		t.Fatalf("expected enabled after Set(true)")
	}
}

func TestRefreshFromEnv(t *testing.T) {
	t.Setenv("SMTP_DEBUG", "1")
	Set(false)
	RefreshFromEnv()
	if !Enabled() {
		t.Fatalf("expected enabled after RefreshFromEnv")
	}
	t.Setenv("SMTP_DEBUG", "0")
	RefreshFromEnv()
	if Enabled() {
		t.Fatalf("expected disabled when SMTP_DEBUG=0")
	}
}

func TestLoggerLogf(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)
	l.Logf("queued %s", "a@x")
	if !strings.Contains(buf.String(), "queued a@x") {
		t.Fatalf("expected event in output, got %q", buf.String())
	}

	buf.Reset()
	New(&buf, false).Logf("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output when disabled, got %q", buf.String())
	}

	var nilLogger *Logger
	nilLogger.Logf("must not panic")
}
