package outbound

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/welldanyogia/threadmail/internal/config"
)

// Transport submits an encoded message
type Transport interface {
	Send(ctx context.Context, from string, to []string, raw []byte) error
}

// SMTPTransport submits messages to a mail submission server. A new
// connection is opened for every message.
type SMTPTransport struct {
	server    config.MailServer
	heloName  string
	tlsConfig *tls.Config
}

// NewSMTPTransport creates a transport for server; heloName is announced
// in the EHLO greeting
func NewSMTPTransport(server config.MailServer, heloName string) *SMTPTransport {
	return &SMTPTransport{
		server:    server,
		heloName:  heloName,
		tlsConfig: &tls.Config{ServerName: server.Host, MinVersion: tls.VersionTLS12},
	}
}

func (t *SMTPTransport) dial() (*smtp.Client, error) {
	addr := t.server.Addr()
	switch t.server.TLSMode {
	case config.TLSModeStartTLS:
		return smtp.DialStartTLS(addr, t.tlsConfig)
	case config.TLSModeNone:
		return smtp.Dial(addr)
	default:
		return smtp.DialTLS(addr, t.tlsConfig)
	}
}

// Send delivers raw from the envelope sender to the recipients
func (t *SMTPTransport) Send(ctx context.Context, from string, to []string, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := t.dial()
	if err != nil {
		return fmt.Errorf("connecting to SMTP %s: %w", t.server.Addr(), err)
	}
	defer c.Close()

	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		c.CommandTimeout = remaining
		c.SubmissionTimeout = remaining
	}

	if t.heloName != "" {
		if err := c.Hello(t.heloName); err != nil {
			return fmt.Errorf("greeting SMTP server: %w", err)
		}
	}

	if t.server.Username != "" {
		auth := sasl.NewPlainClient("", t.server.Username, t.server.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed for %s: %w", t.server.Username, err)
		}
	}

	if err := c.SendMail(from, to, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("submitting message: %w", err)
	}

	return c.Quit()
}
