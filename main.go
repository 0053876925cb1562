package main

import (
	"bytes"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	health "mailrelay/health"
	audit "mailrelay/internal/audit"
	"mailrelay/internal/config"
	"mailrelay/internal/dkim"
	"mailrelay/internal/email"
	"mailrelay/internal/metrics"
	"mailrelay/queue"
	"mailrelay/relay"
	"mailrelay/spool"
	tlsconfig "mailrelay/tlsconfig"
)

func main() {
	if err := godotenv.Load(); err == nil {
		audit.RefreshFromEnv()
	}

	addr := overridePort(":2525", os.Getenv("SMTP_PORT"))
	log.Printf("SMTP relay listening on %s", addr)

	if _, _, err := health.StartHealthServer(overridePort(":8080", os.Getenv("SMTP_HEALTH_PORT"))); err != nil {
		log.Fatalf("Failed to start health server: %v", err)
	}

	store, err := spool.NewStore(config.SpoolDir())
	if err != nil {
		log.Fatalf("Failed to open spool: %v", err)
	}
	signer, err := dkim.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load DKIM config: %v", err)
	}

	queuer := relay.NewDomainQueuer(store, nil, audit.Default())
	m := queue.NewManager(store, signer, audit.Default())
	m.Start()
	defer m.Stop()

	tlsConf, err := tlsconfig.LoadTLSConfig()
	if err != nil {
		if !errors.Is(err, tlsconfig.ErrTLSDisabled) {
			log.Fatalf("Failed to load TLS: %v", err)
		}
		tlsConf = nil
	}
	baseListener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	var ln net.Listener = baseListener
	if tlsConf != nil {
		ln = tls.NewListener(baseListener, tlsConf)
		audit.Log("SMTP TLS enabled on %s", addr)
		log.Printf("SMTP TLS enabled on %s", addr)
	} else {
		log.Printf("SMTP plaintext listening on %s", addr)
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("Accept error: %v", err)
			continue
		}
		go handleSession(conn, queuer)
	}
}

type pendingRecipient struct {
	addr    string
	factory func() (io.WriteCloser, error)
}

func handleSession(conn net.Conn, queuer *relay.DomainQueuer) {
	defer conn.Close()
	metrics.IncSessions()
	defer metrics.DecSessions()

	if !connAllowed(conn.RemoteAddr()) {
		audit.Log("connection from %v refused by allow-list", conn.RemoteAddr())
		fmt.Fprintf(conn, "554 Access denied\r\n")
		return
	}

	tp := textproto.NewConn(conn)
	defer tp.Close()

	timeout := 15 * time.Minute
	_ = conn.SetDeadline(time.Now().Add(timeout))

	send := func(code int, msg string) {
		t := fmt.Sprintf("%d %s", code, msg)
		_ = tp.PrintfLine(t)
	}

	send(220, config.Hostname()+" ESMTP relay ready")
	var from string
	var recipients []pendingRecipient

	reset := func() {
		from = ""
		recipients = nil
	}
	defer reset()

	for {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			log.Printf("failed to refresh deadline: %v", err)
			return
		}
		line, err := tp.ReadLine()
		if err != nil {
			log.Printf("session error: %v", err)
			return
		}
		audit.Log("command from %v: %s", conn.RemoteAddr(), summarizeCommand(line))
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "HELO") || strings.HasPrefix(cmd, "EHLO"):
			send(250, "Hello")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			addr, err := email.ParseCommandAddress(line)
			if err != nil {
				send(501, "Invalid sender address")
				continue
			}
			from = addr
			recipients = nil
			send(250, "Sender OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			if from == "" {
				send(503, "Need MAIL command first")
				continue
			}
			addr, err := email.ParseCommandAddress(line)
			if err != nil {
				send(501, "Invalid recipient address")
				continue
			}
			factory, err := queuer.Exists(relay.User{
				Orig: from,
				Dest: addr,
				Peer: conn.RemoteAddr(),
			})
			if err != nil {
				send(550, "Relaying denied for "+addr)
				continue
			}
			recipients = append(recipients, pendingRecipient{addr: addr, factory: factory})
			send(250, "Recipient OK")
		case strings.HasPrefix(cmd, "DATA"):
			if from == "" || len(recipients) == 0 {
				send(503, "Need sender and recipient before DATA")
				continue
			}
			traceID := shortID()
			send(354, "End with <CR><LF>.<CR><LF>")
			var data bytes.Buffer
			if _, err := io.Copy(&data, tp.DotReader()); err != nil {
				send(554, "Read error")
				return
			}

			// One spool item per accepted recipient.
			queued := 0
			for _, rcpt := range recipients {
				if err := spoolBody(rcpt.factory, data.Bytes()); err != nil {
					log.Printf("failed to spool message %s for %s: %v", traceID, rcpt.addr, err)
					continue
				}
				queued++
			}
			if queued == 0 {
				send(451, "Failed to queue message")
			} else {
				audit.Log("message %s queued for %d recipient(s)", traceID, queued)
				send(250, "Message accepted")
			}
			reset()
		case strings.HasPrefix(cmd, "RSET"):
			reset()
			send(250, "OK")
		case strings.HasPrefix(cmd, "NOOP"):
			send(250, "OK")
		case strings.HasPrefix(cmd, "QUIT"):
			send(221, "Bye")
			return
		default:
			send(502, "Command not implemented")
		}
	}
}

// spoolBody runs one recipient's sink factory and writes the message body,
// closing the sink on every path.
func spoolBody(factory func() (io.WriteCloser, error), body []byte) error {
	sink, err := factory()
	if err != nil {
		return err
	}
	_, werr := sink.Write(body)
	cerr := sink.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// connAllowed checks the peer against the configured allow-lists. With no
// lists configured every peer may connect; relay authorization is decided
// per recipient.
func connAllowed(addr net.Addr) bool {
	networks := config.AllowedNetworks()
	hosts := config.AllowedHosts()
	if len(networks) == 0 && len(hosts) == 0 {
		return true
	}
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		// Non-TCP peers (unix sockets) are local by construction.
		return true
	}
	for _, network := range networks {
		if network.Contains(tcp.IP) {
			return true
		}
	}
	if len(hosts) > 0 {
		names, err := net.LookupAddr(tcp.IP.String())
		if err == nil {
			for _, name := range names {
				name = strings.ToLower(strings.TrimSuffix(name, "."))
				for _, host := range hosts {
					if name == host {
						return true
					}
				}
			}
		}
	}
	return false
}

// overridePort replaces the port of addr when port is non-empty.
func overridePort(addr, port string) string {
	port = strings.TrimPrefix(strings.TrimSpace(port), ":")
	if port == "" {
		return addr
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.JoinHostPort(host, port)
	}
	return net.JoinHostPort(addr, port)
}

// summarizeCommand trims a command line for audit logging.
func summarizeCommand(line string) string {
	line = strings.TrimSpace(line)
	if len(line) > 117 {
		return line[:117] + "..."
	}
	return line
}

func shortID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
