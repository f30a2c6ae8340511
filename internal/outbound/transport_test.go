package outbound

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/threadmail/internal/config"
)

type delivery struct {
	from string
	to   []string
	data []byte
	user string
}

// recordingBackend accepts mail for any recipient except rejected ones
type recordingBackend struct {
	mu         sync.Mutex
	deliveries []delivery
	username   string
	password   string
	reject     string
}

func (b *recordingBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &recordingSession{backend: b}, nil
}

func (b *recordingBackend) received() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]delivery(nil), b.deliveries...)
}

type recordingSession struct {
	backend *recordingBackend
	current delivery
}

func (s *recordingSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *recordingSession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.backend.username || password != s.backend.password {
			return errors.New("invalid credentials")
		}
		s.current.user = username
		return nil
	}), nil
}

func (s *recordingSession) Mail(from string, _ *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *recordingSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.backend.reject {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "mailbox unavailable"}
	}
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *recordingSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = data

	s.backend.mu.Lock()
	s.backend.deliveries = append(s.backend.deliveries, s.current)
	s.backend.mu.Unlock()
	return nil
}

func (s *recordingSession) Reset() {
	s.current = delivery{user: s.current.user}
}

func (s *recordingSession) Logout() error {
	return nil
}

func startSMTPServer(t *testing.T, be *recordingBackend) config.MailServer {
	t.Helper()

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return config.MailServer{
		Host:    "127.0.0.1",
		Port:    ln.Addr().(*net.TCPAddr).Port,
		TLSMode: config.TLSModeNone,
	}
}

var testMessage = []byte("From: support@shop.example\r\n" +
	"To: customer@example.com\r\n" +
	"Subject: Re: Order 1042\r\n" +
	"Message-Id: <abc@shop.example>\r\n" +
	"\r\n" +
	"It shipped today.\r\n")

func TestSMTPTransport_Delivers(t *testing.T) {
	be := &recordingBackend{}
	server := startSMTPServer(t, be)

	transport := NewSMTPTransport(server, "shop.example")
	err := transport.Send(context.Background(), operatorAddress, []string{"customer@example.com"}, testMessage)
	require.NoError(t, err)

	got := be.received()
	require.Len(t, got, 1)
	assert.Equal(t, operatorAddress, got[0].from)
	assert.Equal(t, []string{"customer@example.com"}, got[0].to)
	assert.Contains(t, string(got[0].data), "Subject: Re: Order 1042")
	assert.Contains(t, string(got[0].data), "It shipped today.")
}

func TestSMTPTransport_Authenticates(t *testing.T) {
	be := &recordingBackend{username: "support", password: "secret"}
	server := startSMTPServer(t, be)
	server.Username = "support"
	server.Password = "secret"

	err := NewSMTPTransport(server, "shop.example").
		Send(context.Background(), operatorAddress, []string{"customer@example.com"}, testMessage)
	require.NoError(t, err)

	got := be.received()
	require.Len(t, got, 1)
	assert.Equal(t, "support", got[0].user)
}

func TestSMTPTransport_BadCredentials(t *testing.T) {
	be := &recordingBackend{username: "support", password: "secret"}
	server := startSMTPServer(t, be)
	server.Username = "support"
	server.Password = "wrong"

	err := NewSMTPTransport(server, "shop.example").
		Send(context.Background(), operatorAddress, []string{"customer@example.com"}, testMessage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.Empty(t, be.received())
}

func TestSMTPTransport_RejectedRecipient(t *testing.T) {
	be := &recordingBackend{reject: "gone@example.com"}
	server := startSMTPServer(t, be)

	err := NewSMTPTransport(server, "shop.example").
		Send(context.Background(), operatorAddress, []string{"gone@example.com"}, testMessage)
	require.Error(t, err)

	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)
	assert.Empty(t, be.received())
}

func TestSMTPTransport_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	server := config.MailServer{Host: "127.0.0.1", Port: port, TLSMode: config.TLSModeNone}
	err = NewSMTPTransport(server, "").
		Send(context.Background(), operatorAddress, []string{"customer@example.com"}, testMessage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to SMTP")
}

func TestSMTPTransport_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := config.MailServer{Host: "127.0.0.1", Port: 1, TLSMode: config.TLSModeNone}
	err := NewSMTPTransport(server, "").Send(ctx, operatorAddress, []string{"customer@example.com"}, testMessage)
	assert.ErrorIs(t, err, context.Canceled)
}
