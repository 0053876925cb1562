package delivery

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"time"

	"mailrelay/internal/config"
)

var smtpPort = "25"

// Deliver attempts SMTP delivery to a given host, streaming the message data.
func Deliver(host string, from string, to string, data io.Reader) error {
	addr := net.JoinHostPort(host, smtpPort)
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(2 * time.Minute)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer client.Close()

	helo := config.Hostname()
	if err := client.Hello(helo); err != nil {
		return fmt.Errorf("helo: %w", err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConf := &tls.Config{
			ServerName:               host,
			MinVersion:               tls.VersionTLS12,
			PreferServerCipherSuites: true,
		}
		if err := client.StartTLS(tlsConf); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
		if err := client.Hello(helo); err != nil {
			return fmt.Errorf("post-starttls helo: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data start: %w", err)
	}
	if _, err := io.Copy(w, data); err != nil {
		return fmt.Errorf("data write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data close: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("quit: %w", err)
	}

	return nil
}
