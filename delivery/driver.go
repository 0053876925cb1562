package delivery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/textproto"

	"mailrelay/internal/audit"
	"mailrelay/internal/dkim"
	"mailrelay/relay"
)

var deliverFunc = Deliver

// DeliverMessage resolves the recipient domain and attempts SMTP delivery to
// its MX hosts in preference order. When data is seekable it is rewound
// before every host attempt.
func DeliverMessage(from, to string, data io.Reader) error {
	domain, err := ExtractDomain(to)
	if err != nil {
		return err
	}
	mxRecords, err := ResolveMX(domain)
	if err != nil {
		return fmt.Errorf("MX lookup failed for %s: %w", domain, err)
	}
	if len(mxRecords) == 0 {
		return fmt.Errorf("MX lookup failed for %s: no MX records", domain)
	}
	var lastErr error
	for _, mx := range mxRecords {
		if seeker, ok := data.(io.Seeker); ok {
			if _, serr := seeker.Seek(0, io.SeekStart); serr != nil {
				return fmt.Errorf("rewind message data: %w", serr)
			}
		}
		err = deliverFunc(mx.Host, from, to, data)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("delivery failed: %w", lastErr)
}

// RelayBatch drives one relayer pass: it pulls each item in turn, attempts
// SMTP delivery and reports the outcome back through DeliveryResult. Items
// that fail stay spooled; only storage errors abort the pass.
func RelayBatch(r *relay.Relayer, signer *dkim.Signer, sink *audit.Logger) error {
	defer r.Close()
	for {
		from, ok := r.Sender()
		if !ok {
			return nil
		}
		rcpts := r.Recipients()
		body, err := r.Body()
		if err != nil {
			return err
		}
		to := rcpts[0]

		code, resp := attempt(from, to, body, signer)
		numOK := 0
		if code >= 200 && code < 300 {
			numOK = 1
		}
		if err := r.DeliveryResult(code, resp, numOK, rcpts, sink); err != nil {
			return err
		}
	}
}

func attempt(from, to string, body io.Reader, signer *dkim.Signer) (int, string) {
	if signer != nil {
		raw, err := io.ReadAll(body)
		if err != nil {
			return 451, fmt.Sprintf("read spooled message: %v", err)
		}
		signed, err := signer.Sign(raw, from)
		if err != nil {
			log.Printf("DKIM signing failed for %s: %v", to, err)
			signed = raw
		}
		body = bytes.NewReader(signed)
	}
	return statusFromError(DeliverMessage(from, to, body))
}

// statusFromError maps a delivery outcome onto an SMTP status. Protocol
// errors carry the remote server's code; transport errors become a 451 so
// the item is retried later.
func statusFromError(err error) (int, string) {
	if err == nil {
		return 250, "delivered"
	}
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code, proto.Msg
	}
	return 451, err.Error()
}
