package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
)

// UserDirectory resolves a user id to the address notifications go to
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*ports.User, error)
}

// Notifier delivers push messages to the user's own mailbox over SMTP
type Notifier struct {
	transport *smtpTransport
	users     UserDirectory
	baseURL   string
	logger    *zap.Logger
}

// NewNotifier creates a new SMTP notifier. baseURL prefixes the relative
// link carried by each push message.
func NewNotifier(cfg SMTPConfig, users UserDirectory, baseURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		transport: newTransport(cfg, logger),
		users:     users,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}
}

// Push mails msg to the user
func (n *Notifier) Push(ctx context.Context, userID string, msg *core.PushMessage) error {
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	if user.Email == "" {
		return errors.New("user has no notification address")
	}

	body := msg.Body
	if msg.URL != "" {
		body += "\n\n" + n.baseURL + msg.URL
	}

	data, err := buildMessage([]header{
		{"From", n.transport.cfg.From},
		{"To", user.Email},
		{"Subject", encodeSubject("[Inbox Triage] " + msg.Title)},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"X-Inbox-Triage-Email", msg.EmailID},
	}, body)
	if err != nil {
		return err
	}

	if err := n.transport.send(ctx, []string{user.Email}, data); err != nil {
		return err
	}

	n.logger.Debug("Push notification mailed",
		zap.String("user_id", userID),
		zap.String("email_id", msg.EmailID))
	return nil
}

// LogNotifier writes push messages to the log instead of delivering them
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Push logs msg
func (n *LogNotifier) Push(_ context.Context, userID string, msg *core.PushMessage) error {
	n.logger.Info("Push notification",
		zap.String("user_id", userID),
		zap.String("email_id", msg.EmailID),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.String("url", msg.URL))
	return nil
}
