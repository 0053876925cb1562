package queue

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"mailrelay/delivery"
	"mailrelay/internal/audit"
	"mailrelay/internal/config"
	"mailrelay/internal/dkim"
	"mailrelay/internal/metrics"
	"mailrelay/relay"
	"mailrelay/spool"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

var relayBatchFunc = delivery.RelayBatch

type retryState struct {
	attempts  int
	nextRetry time.Time
}

// Manager periodically sweeps the spool and drives undelivered items through
// delivery in bounded batches. Items that fail a pass stay on disk and are
// retried with exponential backoff on later sweeps.
type Manager struct {
	store    *spool.Store
	signer   *dkim.Signer
	audit    *audit.Logger
	interval time.Duration
	batch    int
	mu       sync.Mutex
	retries  map[string]retryState
	quit     chan struct{}
}

// NewManager creates a delivery queue manager over store. signer and sink
// may be nil.
func NewManager(store *spool.Store, signer *dkim.Signer, sink *audit.Logger) *Manager {
	return &Manager{
		store:    store,
		signer:   signer,
		audit:    sink,
		interval: config.QueueInterval(),
		batch:    config.QueueBatch(),
		retries:  make(map[string]retryState),
		quit:     make(chan struct{}),
	}
}

// Start starts the queue processor in a background goroutine.
func (m *Manager) Start() {
	go func() {
		for {
			select {
			case <-m.quit:
				return
			default:
				m.processQueue()
				time.Sleep(m.interval)
			}
		}
	}()
}

// Stop shuts down the queue processor.
func (m *Manager) Stop() {
	close(m.quit)
}

// Depth returns the number of undelivered items in the spool.
func (m *Manager) Depth() int {
	bases, err := m.store.Enumerate()
	if err != nil {
		return 0
	}
	return len(bases)
}

// processQueue runs one sweep: pick due items, relay them, record outcomes.
func (m *Manager) processQueue() {
	bases, err := m.store.Enumerate()
	if err != nil {
		log.Printf("spool sweep failed: %v", err)
		return
	}
	metrics.SetQueueDepth(len(bases))
	if len(bases) == 0 {
		return
	}

	now := time.Now()
	due := make([]string, 0, m.batch)
	m.mu.Lock()
	for _, base := range bases {
		state, tracked := m.retries[base]
		if tracked && now.Before(state.nextRetry) {
			continue
		}
		due = append(due, base)
		if len(due) == m.batch {
			break
		}
	}
	m.mu.Unlock()
	if len(due) == 0 {
		return
	}

	r, err := relay.NewRelayer(m.store, due, m.audit)
	if err != nil {
		log.Printf("failed to load relay batch: %v", err)
		m.recordFailures(due, now)
		return
	}
	if err := relayBatchFunc(r, m.signer, m.audit); err != nil {
		log.Printf("relay pass aborted: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, base := range due {
		if m.store.Exists(base) {
			state := m.retries[base]
			state.attempts++
			state.nextRetry = time.Now().Add(backoffDuration(state.attempts))
			m.retries[base] = state
			metrics.DeliveryFailures.Add(1)
			log.Printf("Retry %d for %s in %v", state.attempts, base, time.Until(state.nextRetry).Round(time.Second))
			continue
		}
		delete(m.retries, base)
		metrics.MessagesDelivered.Add(1)
		log.Printf("Delivered spooled message %s", base)
	}
}

// recordFailures backs off every named item so a corrupt entry cannot make
// the sweep hot-loop.
func (m *Manager) recordFailures(bases []string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, base := range bases {
		state := m.retries[base]
		state.attempts++
		state.nextRetry = now.Add(backoffDuration(state.attempts))
		m.retries[base] = state
	}
}

func backoffDuration(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	base := time.Minute * time.Duration(1<<uint(min(attempts-1, 6)))
	jitter := time.Duration(rand.Int63n(int64(base / 4)))
	return base + jitter
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
