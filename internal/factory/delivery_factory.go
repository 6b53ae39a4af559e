package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/adapters/gmail"
	"github.com/mikey/inbox-triage/internal/adapters/mail"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
)

// DeliveryFactory creates the outbound notifier and reply sender
type DeliveryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDeliveryFactory creates a new delivery factory
func NewDeliveryFactory(cfg *config.Config, logger *zap.Logger) *DeliveryFactory {
	return &DeliveryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateNotifier creates the configured push notifier
func (f *DeliveryFactory) CreateNotifier(users mail.UserDirectory) (core.Notifier, error) {
	notifyType := f.cfg.GetNotify().Type

	switch notifyType {
	case "log":
		return mail.NewLogNotifier(f.logger), nil
	case "smtp":
		smtp, err := f.smtpConfig()
		if err != nil {
			return nil, err
		}
		return mail.NewNotifier(smtp, users, f.cfg.GetServer().BaseURL, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", notifyType)
	}
}

// CreateReplySender creates the configured sender for approved replies
func (f *DeliveryFactory) CreateReplySender(ctx context.Context) (core.ReplySender, error) {
	replyType := f.cfg.GetReply().Type

	switch replyType {
	case "smtp":
		smtp, err := f.smtpConfig()
		if err != nil {
			return nil, err
		}
		return mail.NewReplySender(smtp, f.logger), nil
	case "gmail":
		c := f.cfg.GetGmail()
		return gmail.NewReplySender(ctx, gmail.Credentials{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RefreshToken: c.RefreshToken,
		}, f.logger)
	default:
		return nil, fmt.Errorf("unsupported reply sender type: %s", replyType)
	}
}

func (f *DeliveryFactory) smtpConfig() (mail.SMTPConfig, error) {
	c, err := f.cfg.GetSMTP()
	if err != nil {
		return mail.SMTPConfig{}, err
	}
	if c.From == "" {
		return mail.SMTPConfig{}, fmt.Errorf("smtp.from is required")
	}
	return mail.SMTPConfig{
		Address:  c.Address,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		StartTLS: c.StartTLS,
		Timeout:  c.Timeout,
	}, nil
}
