package relay

import (
	"fmt"
	"io"
	"net"

	"mailrelay/internal/audit"
	"mailrelay/internal/email"
	"mailrelay/internal/metrics"
	"mailrelay/spool"
)

// User describes one recipient of an inbound message at accept time.
type User struct {
	// Orig is the envelope sender (MAIL FROM).
	Orig string
	// Dest is the candidate recipient (RCPT TO).
	Dest string
	// Peer is the network address the message arrived from.
	Peer net.Addr
	// Authed reports whether the originator authenticated.
	Authed bool
}

// RejectError reports that relaying to a recipient was refused at accept
// time. Nothing is spooled for a rejected recipient.
type RejectError struct {
	Recipient string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("relaying to %s rejected", e.Recipient)
}

// DomainQueuer gates relay requests against a rule set and spools accepted
// ones, one item per (sender, recipient) pair.
type DomainQueuer struct {
	store *spool.Store
	rules Rules
	audit *audit.Logger
}

// NewDomainQueuer returns a queuer over store. A nil rules falls back to
// LocalOriginRules; sink may be nil to discard audit events.
func NewDomainQueuer(store *spool.Store, rules Rules, sink *audit.Logger) *DomainQueuer {
	if rules == nil {
		rules = LocalOriginRules{}
	}
	return &DomainQueuer{store: store, rules: rules, audit: sink}
}

// Exists checks whether mail can be relayed to u.Dest. On success it returns
// a factory that spools the envelope and hands back a sink for the message
// body. Denied or malformed requests fail with a *RejectError and leave no
// trace on disk.
func (q *DomainQueuer) Exists(u User) (func() (io.WriteCloser, error), error) {
	if !q.rules.WillRelay(u.Dest, u.Peer, u.Authed) {
		metrics.RelayRejections.Add(1)
		return nil, &RejectError{Recipient: u.Dest}
	}
	if _, _, err := email.Split(u.Orig); err != nil {
		metrics.RelayRejections.Add(1)
		return nil, &RejectError{Recipient: u.Dest}
	}
	if _, _, err := email.Split(u.Dest); err != nil {
		metrics.RelayRejections.Add(1)
		return nil, &RejectError{Recipient: u.Dest}
	}
	return func() (io.WriteCloser, error) {
		return q.startMessage(u)
	}, nil
}

// startMessage creates the spool item and writes its envelope. The envelope
// handle is closed on every path before returning.
func (q *DomainQueuer) startMessage(u User) (io.WriteCloser, error) {
	env, body, base, err := q.store.CreateNewMessage()
	if err != nil {
		return nil, err
	}
	werr := spool.WriteEnvelope(env, u.Orig, u.Dest)
	if cerr := env.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		body.Close()
		q.store.Discard(base)
		return nil, fmt.Errorf("relay: queue envelope for %s: %w", u.Dest, werr)
	}
	q.audit.Logf("queueing mail %s -> %s as %s", u.Orig, u.Dest, base)
	metrics.MessagesQueued.Add(1)
	return body, nil
}
