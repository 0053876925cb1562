package config

import (
	"testing"
	"time"
)

func TestBool(t *testing.T) {
	t.Setenv("BOOL_TRUE", "true")
	t.Setenv("BOOL_FALSE", "false")
	t.Setenv("BOOL_NOISE", "yes")

	if !Bool("BOOL_TRUE", false) {
		t.Fatalf("expected true")
	}
	if Bool("BOOL_FALSE", true) {
		t.Fatalf("expected false override")
	}
	if !Bool("BOOL_MISSING", true) {
		t.Fatalf("expected default true for missing key")
	}
	if Bool("BOOL_NOISE", true) != true {
		t.Fatalf("unexpected override for unsupported values")
	}
}

func TestSpoolDir(t *testing.T) {
	t.Setenv("SMTP_SPOOL_DIR", "")
	if got := SpoolDir(); got != "./data/spool" {
		t.Fatalf("expected default spool dir, got %q", got)
	}
	t.Setenv("SMTP_SPOOL_DIR", "/var/spool/relay")
	if got := SpoolDir(); got != "/var/spool/relay" {
		t.Fatalf("expected configured spool dir, got %q", got)
	}
}

func TestQueueBatch(t *testing.T) {
	t.Setenv("SMTP_QUEUE_BATCH", "")
	if got := QueueBatch(); got != 64 {
		t.Fatalf("expected default batch 64, got %d", got)
	}

	t.Setenv("SMTP_QUEUE_BATCH", "10")
	if got := QueueBatch(); got != 10 {
		t.Fatalf("expected configured batch 10, got %d", got)
	}

	t.Setenv("SMTP_QUEUE_BATCH", "-3")
	if got := QueueBatch(); got != 64 {
		t.Fatalf("expected fallback to default for negative value, got %d", got)
	}

	t.Setenv("SMTP_QUEUE_BATCH", "noise")
	if got := QueueBatch(); got != 64 {
		t.Fatalf("expected fallback to default for invalid value, got %d", got)
	}
}

func TestQueueInterval(t *testing.T) {
	t.Setenv("SMTP_QUEUE_INTERVAL", "")
	if got := QueueInterval(); got != 5*time.Second {
		t.Fatalf("expected default interval, got %v", got)
	}

	t.Setenv("SMTP_QUEUE_INTERVAL", "30s")
	if got := QueueInterval(); got != 30*time.Second {
		t.Fatalf("expected configured interval, got %v", got)
	}

	t.Setenv("SMTP_QUEUE_INTERVAL", "-5s")
	if got := QueueInterval(); got != 5*time.Second {
		t.Fatalf("expected fallback to default for negative value, got %v", got)
	}
}
