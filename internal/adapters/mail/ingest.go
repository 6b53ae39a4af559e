package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
)

const defaultMaxMessageBytes = 25 * 1024 * 1024

// Mailbox stores mail received for known users
type Mailbox interface {
	ListUsers(ctx context.Context) ([]ports.User, error)
	AddEmail(ctx context.Context, email *core.Email) error
}

// IngestConfig configures the receiving SMTP listener
type IngestConfig struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
}

// IngestServer accepts forwarded mail over SMTP and stores it as ingested
// email of the user whose address it was sent to
type IngestServer struct {
	cfg     IngestConfig
	mailbox Mailbox
	logger  *zap.Logger

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
}

// NewIngestServer creates a new ingest server
func NewIngestServer(cfg IngestConfig, mailbox Mailbox, logger *zap.Logger) *IngestServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Domain == "" {
		cfg.Domain = "localhost"
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	return &IngestServer{
		cfg:     cfg,
		mailbox: mailbox,
		logger:  logger,
	}
}

// Start binds the listener and serves in the background
func (s *IngestServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("ingest server already started")
	}

	server := smtp.NewServer(&ingestBackend{ingest: s})
	server.Addr = s.cfg.ListenAddress
	server.Domain = s.cfg.Domain
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = s.cfg.MaxMessageBytes
	server.MaxRecipients = 50

	l, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	s.server = server
	s.listener = l

	s.logger.Info("SMTP ingest listening", zap.String("address", l.Addr().String()))

	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			s.logger.Error("SMTP ingest server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *IngestServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and open sessions
func (s *IngestServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	s.listener = nil
	return err
}

// lookup resolves a recipient address to an active user id
func (s *IngestServer) lookup(ctx context.Context, rcpt string) (string, error) {
	users, err := s.mailbox.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	rcpt = strings.ToLower(strings.TrimSpace(rcpt))
	for _, u := range users {
		if strings.ToLower(u.Email) == rcpt {
			return u.ID, nil
		}
	}
	return "", core.ErrNotFound
}

// deliver stores one copy of the message per recipient user
func (s *IngestServer) deliver(ctx context.Context, recipients []recipient, data []byte) error {
	parsed, err := ParseMessage(bytes.NewReader(data))
	if err != nil {
		return err
	}

	for _, rcpt := range recipients {
		email := *parsed
		email.ID = uuid.NewString()
		email.UserID = rcpt.userID
		email.AccountID = rcpt.address
		if err := s.mailbox.AddEmail(ctx, &email); err != nil {
			return fmt.Errorf("failed to store email for %s: %w", rcpt.userID, err)
		}
		s.logger.Info("Email ingested",
			zap.String("user_id", rcpt.userID),
			zap.String("email_id", email.ID),
			zap.String("message_id", email.MessageID))
	}
	return nil
}

type recipient struct {
	userID  string
	address string
}

type ingestBackend struct {
	ingest *IngestServer
}

func (b *ingestBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &ingestSession{ingest: b.ingest}, nil
}

type ingestSession struct {
	ingest     *IngestServer
	from       string
	recipients []recipient
}

func (s *ingestSession) Reset() {
	s.from = ""
	s.recipients = nil
}

func (s *ingestSession) Logout() error {
	return nil
}

func (s *ingestSession) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *ingestSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	userID, err := s.ingest.lookup(context.Background(), to)
	if errors.Is(err, core.ErrNotFound) {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "No such user",
		}
	}
	if err != nil {
		s.ingest.logger.Error("Failed to look up recipient", zap.String("rcpt", to), zap.Error(err))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary lookup failure",
		}
	}
	s.recipients = append(s.recipients, recipient{userID: userID, address: to})
	return nil
}

func (s *ingestSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	if err := s.ingest.deliver(context.Background(), s.recipients, data); err != nil {
		s.ingest.logger.Error("Failed to ingest email", zap.String("from", s.from), zap.Error(err))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Message could not be stored",
		}
	}
	return nil
}
