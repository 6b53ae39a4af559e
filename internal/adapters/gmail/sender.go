// Package gmail sends approved replies through the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mikey/inbox-triage/internal/core"
)

// Credentials are the OAuth client and offline refresh token of the mailbox
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// ReplySender is a core.ReplySender backed by the Gmail API
type ReplySender struct {
	svc    *gmail.UsersService
	logger *zap.Logger
}

// NewReplySender creates a sender that refreshes access tokens from creds
func NewReplySender(ctx context.Context, creds Credentials, logger *zap.Logger) (*ReplySender, error) {
	if creds.ClientID == "" || creds.RefreshToken == "" {
		return nil, errors.New("gmail client id and refresh token are required")
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	return newReplySender(ctx, logger, option.WithTokenSource(ts))
}

func newReplySender(ctx context.Context, logger *zap.Logger, opts ...option.ClientOption) (*ReplySender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &ReplySender{svc: svc.Users, logger: logger}, nil
}

// SendReply sends text as a threaded reply to email and returns the Gmail message id
func (s *ReplySender) SendReply(ctx context.Context, email *core.Email, text string) (string, error) {
	if email.From == "" {
		return "", errors.New("original message has no From header")
	}

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(buildReply(email, text))),
	}
	// header-derived thread ids look like Message-IDs and mean nothing to Gmail
	if email.ThreadID != "" && !strings.HasPrefix(email.ThreadID, "<") {
		msg.ThreadId = email.ThreadID
	}

	sent, err := s.svc.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send reply: %w", err)
	}

	s.logger.Info("Reply sent via Gmail",
		zap.String("email_id", email.ID),
		zap.String("gmail_id", sent.Id),
		zap.String("thread_id", sent.ThreadId))
	return sent.Id, nil
}

func buildReply(email *core.Email, text string) string {
	subject := strings.TrimSpace(email.Subject)
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = strings.TrimSpace("Re: " + subject)
	}

	var b strings.Builder
	b.WriteString("To: " + email.From + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	if email.MessageID != "" {
		b.WriteString("In-Reply-To: " + email.MessageID + "\r\n")
		b.WriteString("References: " + email.MessageID + "\r\n")
	}
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\n", "\r\n"))
	return b.String()
}
