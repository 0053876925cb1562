package relay

import (
	"fmt"
	"io"
	"os"

	"mailrelay/internal/audit"
	"mailrelay/spool"
)

type queuedItem struct {
	sender    string
	recipient string
	base      string
}

// Relayer delivers a fixed batch of spooled items, strictly front to back.
// All envelopes are read at construction; the body file of an item is only
// opened once that item is at the front, and is closed when the item is
// advanced, so at most one spool file is held open at a time.
//
// The outbound SMTP session pulls the current item through Sender,
// Recipients and Body and reports each attempt through DeliveryResult. A
// Relayer never retries within its own pass: failed items stay on disk for a
// later batch.
type Relayer struct {
	store *spool.Store
	items []queuedItem
	body  *os.File
	audit *audit.Logger
}

// NewRelayer loads the items named by bases, in order. Every envelope must
// decode and every body file must be present, otherwise construction fails
// and nothing is consumed.
func NewRelayer(store *spool.Store, bases []string, sink *audit.Logger) (*Relayer, error) {
	r := &Relayer{store: store, audit: sink}
	for _, base := range bases {
		sender, recipient, err := store.ReadEnvelope(base)
		if err != nil {
			return nil, fmt.Errorf("relay: load %s: %w", base, err)
		}
		if !store.Exists(base) {
			return nil, fmt.Errorf("relay: missing data file for %s", base)
		}
		r.items = append(r.items, queuedItem{sender: sender, recipient: recipient, base: base})
	}
	return r, nil
}

// Remaining returns the number of items not yet attempted.
func (r *Relayer) Remaining() int {
	return len(r.items)
}

// Sender returns the envelope sender of the front item, or false when the
// batch is drained.
func (r *Relayer) Sender() (string, bool) {
	if len(r.items) == 0 {
		return "", false
	}
	return r.items[0].sender, true
}

// Recipients returns the front item's recipient as a one-element slice (the
// outbound session is written for possibly-multiple recipients), or nil when
// the batch is drained.
func (r *Relayer) Recipients() []string {
	if len(r.items) == 0 {
		return nil
	}
	return []string{r.items[0].recipient}
}

// Body returns the front item's message data, opening the spool file on
// first use. It returns (nil, nil) when the batch is drained.
func (r *Relayer) Body() (io.Reader, error) {
	if len(r.items) == 0 {
		return nil, nil
	}
	if r.body == nil {
		f, err := r.store.OpenData(r.items[0].base)
		if err != nil {
			return nil, err
		}
		r.body = f
	}
	return r.body, nil
}

// DeliveryResult records the outcome of the delivery attempt for the front
// item. A 2xx code removes both spool files; any other code leaves them in
// place for a later pass. The item is advanced either way. sink overrides
// the logger given at construction when non-nil.
func (r *Relayer) DeliveryResult(code int, resp string, numOK int, addresses []string, sink *audit.Logger) error {
	if len(r.items) == 0 {
		return fmt.Errorf("relay: delivery result with no item in flight")
	}
	if sink == nil {
		sink = r.audit
	}
	item := r.items[0]
	r.closeBody()
	r.items = r.items[1:]

	if code >= 200 && code < 300 {
		sink.Logf("delivered %s -> %s (%d %s)", item.sender, item.recipient, code, resp)
		return r.store.Remove(item.base)
	}
	sink.Logf("delivery %s -> %s failed (%d %s), kept for retry", item.sender, item.recipient, code, resp)
	return nil
}

// Close releases the open body handle, if any. Spool files of undelivered
// items are left untouched.
func (r *Relayer) Close() error {
	r.closeBody()
	return nil
}

func (r *Relayer) closeBody() {
	if r.body != nil {
		r.body.Close()
		r.body = nil
	}
}
