package mail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/core"
)

// ReplySender sends approved replies through the SMTP relay, threaded onto
// the original message
type ReplySender struct {
	transport *smtpTransport
	logger    *zap.Logger
}

// NewReplySender creates a new SMTP reply sender
func NewReplySender(cfg SMTPConfig, logger *zap.Logger) *ReplySender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplySender{
		transport: newTransport(cfg, logger),
		logger:    logger,
	}
}

// SendReply mails text to the sender of email and returns the new Message-ID
func (s *ReplySender) SendReply(ctx context.Context, email *core.Email, text string) (string, error) {
	to, err := mail.ParseAddress(email.From)
	if err != nil {
		return "", fmt.Errorf("invalid reply address %q: %w", email.From, err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(s.transport.cfg.From))
	data, err := buildMessage(replyHeaders(s.transport.cfg.From, to.String(), messageID, email), text)
	if err != nil {
		return "", err
	}

	if err := s.transport.send(ctx, []string{to.Address}, data); err != nil {
		return "", err
	}

	s.logger.Info("Reply sent",
		zap.String("email_id", email.ID),
		zap.String("message_id", messageID))
	return messageID, nil
}

func replyHeaders(from, to, messageID string, email *core.Email) []header {
	references := strings.TrimSpace(email.ThreadID)
	if email.MessageID != "" && email.MessageID != references {
		references = strings.TrimSpace(references + " " + email.MessageID)
	}

	return []header{
		{"From", from},
		{"To", to},
		{"Subject", encodeSubject(replySubject(email.Subject))},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"Message-ID", messageID},
		{"In-Reply-To", email.MessageID},
		{"References", references},
	}
}

func replySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	if subject == "" {
		return "Re:"
	}
	return "Re: " + subject
}
