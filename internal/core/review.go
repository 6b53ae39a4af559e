package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidInput is returned for empty draft text or instructions
var ErrInvalidInput = errors.New("invalid input")

// Reviewer carries out the human-triggered actions on a processed email:
// revising a draft and sending the approved reply. It is the only component
// that holds a ReplySender.
type Reviewer struct {
	emails   EmailSource
	contexts ContextSource
	drafts   DraftStore
	reviser  Reviser
	sender   ReplySender
	logger   *zap.Logger
}

// NewReviewer creates a new reviewer
func NewReviewer(emails EmailSource, contexts ContextSource, drafts DraftStore, reviser Reviser, sender ReplySender, logger *zap.Logger) *Reviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reviewer{
		emails:   emails,
		contexts: contexts,
		drafts:   drafts,
		reviser:  reviser,
		sender:   sender,
		logger:   logger,
	}
}

// Revise rewrites the current draft of an email following instruction and
// stores the result as a new draft version.
func (r *Reviewer) Revise(ctx context.Context, userID, emailID, currentDraft, instruction string) (*DraftVersion, error) {
	if strings.TrimSpace(currentDraft) == "" || strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("draft and instruction are required: %w", ErrInvalidInput)
	}
	if r.reviser == nil {
		return nil, errors.New("no reviser configured")
	}

	if _, err := r.emails.GetEmail(ctx, userID, emailID); err != nil {
		return nil, fmt.Errorf("failed to load email %s: %w", emailID, err)
	}

	pack := &ContextPack{}
	if r.contexts != nil {
		if p, err := r.contexts.GetContextPack(ctx, userID); err == nil && p != nil {
			pack = p
		}
	}

	revised, err := r.reviser.Revise(ctx, pack, currentDraft, instruction)
	if err != nil {
		return nil, &CollaboratorError{Step: "revise", Err: err, Timeout: errors.Is(err, context.DeadlineExceeded)}
	}

	version, err := r.drafts.AppendDraft(ctx, emailID, revised.Text, instruction)
	if err != nil {
		return nil, fmt.Errorf("failed to store revised draft: %w", err)
	}

	r.logger.Info("Draft revised",
		zap.String("user_id", userID),
		zap.String("email_id", emailID),
		zap.Int("version", version.Version))
	return version, nil
}

// Send dispatches finalText as the reply to an email and marks it sent.
// An email that is already sent is rejected with ErrInvalidInput.
func (r *Reviewer) Send(ctx context.Context, userID, emailID, finalText string) (string, error) {
	if strings.TrimSpace(finalText) == "" {
		return "", fmt.Errorf("reply text is required: %w", ErrInvalidInput)
	}
	if r.sender == nil {
		return "", errors.New("no reply sender configured")
	}

	email, err := r.emails.GetEmail(ctx, userID, emailID)
	if err != nil {
		return "", fmt.Errorf("failed to load email %s: %w", emailID, err)
	}
	status, err := r.drafts.EmailStatus(ctx, userID, emailID)
	if err != nil {
		return "", fmt.Errorf("failed to load status of email %s: %w", emailID, err)
	}
	if status == StatusSent {
		return "", fmt.Errorf("email %s was already replied to: %w", emailID, ErrInvalidInput)
	}

	sentID, err := r.sender.SendReply(ctx, email, finalText)
	if err != nil {
		return "", &CollaboratorError{Step: "send", Err: err, Timeout: errors.Is(err, context.DeadlineExceeded)}
	}

	if err := r.drafts.MarkSent(ctx, userID, emailID, sentID); err != nil {
		return sentID, fmt.Errorf("reply sent but failed to update status: %w", err)
	}

	r.logger.Info("Reply sent",
		zap.String("user_id", userID),
		zap.String("email_id", emailID),
		zap.String("sent_message_id", sentID))
	return sentID, nil
}
