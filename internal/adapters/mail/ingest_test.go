package mail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
)

type fakeMailbox struct {
	users   []ports.User
	emails  []core.Email
	listErr error
}

func (m *fakeMailbox) ListUsers(context.Context) ([]ports.User, error) {
	return m.users, m.listErr
}

func (m *fakeMailbox) AddEmail(_ context.Context, email *core.Email) error {
	m.emails = append(m.emails, *email)
	return nil
}

const forwarded = "From: Billing <billing@acme.com>\r\n" +
	"To: ann@shop.test\r\n" +
	"Subject: Invoice 42\r\n" +
	"Message-ID: <inv-42@acme.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please find the invoice attached.\r\n"

func startIngest(t *testing.T, mailbox Mailbox) *IngestServer {
	t.Helper()
	s := NewIngestServer(IngestConfig{ListenAddress: "127.0.0.1:0"}, mailbox, nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestIngestStoresMailPerUser(t *testing.T) {
	mailbox := &fakeMailbox{users: []ports.User{
		{ID: "u1", Email: "Ann@Shop.test", Active: true},
		{ID: "u2", Email: "bob@shop.test", Active: true},
	}}
	s := startIngest(t, mailbox)

	err := smtp.SendMail(s.Addr(), nil, "billing@acme.com", []string{"ann@shop.test", "bob@shop.test"}, strings.NewReader(forwarded))
	require.NoError(t, err)

	require.Len(t, mailbox.emails, 2)
	assert.Equal(t, "u1", mailbox.emails[0].UserID)
	assert.Equal(t, "u2", mailbox.emails[1].UserID)
	assert.NotEqual(t, mailbox.emails[0].ID, mailbox.emails[1].ID)
	assert.Equal(t, "Invoice 42", mailbox.emails[0].Subject)
	assert.Equal(t, "<inv-42@acme.com>", mailbox.emails[0].MessageID)
	assert.Equal(t, "ann@shop.test", mailbox.emails[0].AccountID)
}

func TestIngestRejectsUnknownRecipient(t *testing.T) {
	mailbox := &fakeMailbox{users: []ports.User{{ID: "u1", Email: "ann@shop.test", Active: true}}}
	s := startIngest(t, mailbox)

	err := smtp.SendMail(s.Addr(), nil, "billing@acme.com", []string{"nobody@shop.test"}, strings.NewReader(forwarded))
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)
	assert.Empty(t, mailbox.emails)
}

func TestIngestLookupFailureIsTemporary(t *testing.T) {
	mailbox := &fakeMailbox{listErr: errors.New("db down")}
	s := startIngest(t, mailbox)

	err := smtp.SendMail(s.Addr(), nil, "billing@acme.com", []string{"ann@shop.test"}, strings.NewReader(forwarded))
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 451, smtpErr.Code)
}

func TestIngestStartTwice(t *testing.T) {
	s := startIngest(t, &fakeMailbox{})
	assert.Error(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
