package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSpoolDir      = "./data/spool"
	defaultQueueBatch    = 64
	defaultQueueInterval = 5 * time.Second
)

// SpoolDir returns the directory holding queued message files.
func SpoolDir() string {
	value := strings.TrimSpace(os.Getenv("SMTP_SPOOL_DIR"))
	if value == "" {
		return defaultSpoolDir
	}
	return value
}

// QueueBatch returns the maximum number of spooled items handed to one
// relayer pass. Bounding the batch keeps the number of open spool files small.
func QueueBatch() int {
	value := strings.TrimSpace(os.Getenv("SMTP_QUEUE_BATCH"))
	if value == "" {
		return defaultQueueBatch
	}
	batch, err := strconv.Atoi(value)
	if err != nil || batch < 1 {
		return defaultQueueBatch
	}
	return batch
}

// QueueInterval returns the delay between spool sweeps.
func QueueInterval() time.Duration {
	value := strings.TrimSpace(os.Getenv("SMTP_QUEUE_INTERVAL"))
	if value == "" {
		return defaultQueueInterval
	}
	interval, err := time.ParseDuration(value)
	if err != nil || interval <= 0 {
		return defaultQueueInterval
	}
	return interval
}
