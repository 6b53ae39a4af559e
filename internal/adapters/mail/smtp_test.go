package mail

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
)

type delivery struct {
	from       string
	recipients []string
	data       string
	user       string
}

type testBackend struct {
	mu         sync.Mutex
	deliveries []delivery
	rejectRcpt string
}

func (b *testBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &testSession{backend: b}, nil
}

func (b *testBackend) all() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]delivery(nil), b.deliveries...)
}

type testSession struct {
	backend *testBackend
	current delivery
}

func (s *testSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *testSession) Auth(_ string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != "bot" || password != "secret" {
			return errors.New("invalid credentials")
		}
		s.current.user = username
		return nil
	}), nil
}

func (s *testSession) Mail(from string, _ *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *testSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.backend.rejectRcpt {
		return &smtp.SMTPError{Code: 550, Message: "no such user"}
	}
	s.current.recipients = append(s.current.recipients, to)
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = strings.ReplaceAll(string(data), "\r\n", "\n")
	s.backend.mu.Lock()
	s.backend.deliveries = append(s.backend.deliveries, s.current)
	s.backend.mu.Unlock()
	return nil
}

func (s *testSession) Reset() {
	user := s.current.user
	s.current = delivery{user: user}
}

func (s *testSession) Logout() error {
	return nil
}

func startServer(t *testing.T) (*testBackend, SMTPConfig) {
	t.Helper()
	backend := &testBackend{}
	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(l) }()
	t.Cleanup(func() { _ = server.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return backend, SMTPConfig{
		Address:  host,
		Port:     p,
		Username: "bot",
		Password: "secret",
		From:     "triage@shop.com",
	}
}

type staticUsers map[string]*ports.User

func (u staticUsers) GetUser(_ context.Context, id string) (*ports.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, core.ErrNotFound
}

func TestNotifierPush(t *testing.T) {
	backend, cfg := startServer(t)
	users := staticUsers{"u1": {ID: "u1", Email: "owner@shop.com"}}
	n := NewNotifier(cfg, users, "https://triage.example.com/", nil)

	err := n.Push(context.Background(), "u1", &core.PushMessage{
		EmailID: "e1",
		Title:   "Billing <billing@acme.com>",
		Body:    "Invoice overdue",
		URL:     "/inbox/e1",
	})
	require.NoError(t, err)

	deliveries := backend.all()
	require.Len(t, deliveries, 1)
	d := deliveries[0]
	assert.Equal(t, "bot", d.user)
	assert.Equal(t, "triage@shop.com", d.from)
	assert.Equal(t, []string{"owner@shop.com"}, d.recipients)
	assert.Contains(t, d.data, "Subject: [Inbox Triage] Billing <billing@acme.com>")
	assert.Contains(t, d.data, "X-Inbox-Triage-Email: e1")
	assert.Contains(t, d.data, "https://triage.example.com/inbox/e1")
}

func TestNotifierUnknownUser(t *testing.T) {
	backend, cfg := startServer(t)
	n := NewNotifier(cfg, staticUsers{}, "", nil)

	err := n.Push(context.Background(), "ghost", &core.PushMessage{EmailID: "e1"})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, backend.all())
}

func TestNotifierAuthFailure(t *testing.T) {
	_, cfg := startServer(t)
	cfg.Password = "wrong"
	n := NewNotifier(cfg, staticUsers{"u1": {ID: "u1", Email: "owner@shop.com"}}, "", nil)

	err := n.Push(context.Background(), "u1", &core.PushMessage{EmailID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestReplySender(t *testing.T) {
	backend, cfg := startServer(t)
	s := NewReplySender(cfg, nil)

	email := &core.Email{
		ID:        "e1",
		From:      "Ann <ann@customer.com>",
		Subject:   "Refund request",
		MessageID: "<m2@customer.com>",
		ThreadID:  "<m1@customer.com>",
	}
	id, err := s.SendReply(context.Background(), email, "Hi Ann,\nrefund issued.\n-- Bob")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@shop.com>"))

	deliveries := backend.all()
	require.Len(t, deliveries, 1)
	d := deliveries[0]
	assert.Equal(t, []string{"ann@customer.com"}, d.recipients)
	assert.Contains(t, d.data, "Subject: Re: Refund request")
	assert.Contains(t, d.data, "In-Reply-To: <m2@customer.com>")
	assert.Contains(t, d.data, "References: <m1@customer.com> <m2@customer.com>")
	assert.Contains(t, d.data, "Message-ID: "+id)
	assert.Contains(t, d.data, "Hi Ann,\nrefund issued.")

	parsed, err := ParseMessage(strings.NewReader(d.data))
	require.NoError(t, err)
	assert.Equal(t, "Hi Ann,\nrefund issued.\n-- Bob", parsed.Body)
}

func TestReplySenderRejectedRecipient(t *testing.T) {
	backend, cfg := startServer(t)
	backend.rejectRcpt = "ann@customer.com"
	s := NewReplySender(cfg, nil)

	_, err := s.SendReply(context.Background(), &core.Email{From: "ann@customer.com", Subject: "hi"}, "text")
	assert.EqualError(t, err, "all recipients were rejected")
}

func TestReplySenderBadAddress(t *testing.T) {
	s := NewReplySender(SMTPConfig{}, nil)
	_, err := s.SendReply(context.Background(), &core.Email{From: "not an address"}, "text")
	assert.Error(t, err)
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Hello", replySubject("Hello"))
	assert.Equal(t, "RE: Hello", replySubject(" RE: Hello "))
	assert.Equal(t, "Re:", replySubject(""))
}
