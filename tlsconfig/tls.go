package tlsconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"mailrelay/internal/config"
)

// ErrTLSDisabled reports that TLS was explicitly turned off via
// SMTP_TLS_DISABLE.
var ErrTLSDisabled = errors.New("tlsconfig: disabled")

// LoadTLSConfig builds the listener TLS configuration. When SMTP_TLS_CERT
// and SMTP_TLS_KEY are set that key pair is used; otherwise an ephemeral
// self-signed certificate is generated so STARTTLS stays available.
func LoadTLSConfig() (*tls.Config, error) {
	if config.Bool("SMTP_TLS_DISABLE", false) {
		return nil, ErrTLSDisabled
	}
	certFile := os.Getenv("SMTP_TLS_CERT")
	keyFile := os.Getenv("SMTP_TLS_KEY")

	var cert tls.Certificate
	var err error
	switch {
	case certFile != "" && keyFile != "":
		cert, err = tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("tlsconfig: load key pair: %w", err)
		}
	case certFile == "" && keyFile == "":
		cert, err = ephemeralCert()
		if err != nil {
			return nil, err
		}
		log.Println("[TLS] SMTP_TLS_CERT/SMTP_TLS_KEY not set; using ephemeral self-signed certificate")
	default:
		return nil, errors.New("tlsconfig: SMTP_TLS_CERT and SMTP_TLS_KEY must both be set")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return &cert, nil
		},
		MinVersion:               tls.VersionTLS12,
		PreferServerCipherSuites: true,
	}, nil
}

func ephemeralCert() (tls.Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlsconfig: generate key: %w", err)
	}

	host := config.Hostname()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName: host,
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(90 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{host},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlsconfig: create certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}
