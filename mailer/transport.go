package mailer

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Endpoint is one SMTP submission target. UseSSL dials TLS from the first
// byte; UseTLS upgrades with STARTTLS after connect.
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	UseTLS   bool
}

// Transport delivers a raw RFC 2822 message to an endpoint.
type Transport interface {
	Deliver(ep Endpoint, from string, rcpts []string, raw []byte) error
}

// ConnectError marks failures before the message was handed over:
// dial, TLS negotiation, or authentication.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return e.Err.Error() }
func (e *ConnectError) Unwrap() error { return e.Err }

// SMTPTransport is the default Transport on top of go-smtp.
type SMTPTransport struct{}

func (SMTPTransport) Deliver(ep Endpoint, from string, rcpts []string, raw []byte) error {
	addr := fmt.Sprintf("%s:%d", ep.Host, ep.Port)
	tlsConfig := &tls.Config{ServerName: ep.Host}

	var c *smtp.Client
	var err error
	switch {
	case ep.UseSSL:
		c, err = smtp.DialTLS(addr, tlsConfig)
	case ep.UseTLS:
		c, err = smtp.DialStartTLS(addr, tlsConfig)
	default:
		c, err = smtp.Dial(addr)
	}
	if err != nil {
		return &ConnectError{Err: fmt.Errorf("connecting to SMTP %s: %w", addr, err)}
	}
	defer c.Close()

	// A hung socket must not block the worker indefinitely.
	c.CommandTimeout = 30 * time.Second
	c.SubmissionTimeout = 2 * time.Minute

	if ep.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", ep.Username, ep.Password)); err != nil {
			return &ConnectError{Err: fmt.Errorf("SMTP login failed for %s: %w", ep.Username, err)}
		}
	}

	if err := c.SendMail(from, rcpts, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("sending message via %s: %w", addr, err)
	}

	return c.Quit()
}
