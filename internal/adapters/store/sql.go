package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// dialect captures what differs between the SQL backends
type dialect struct {
	name         string
	schema       []string
	insertIgnore string
}

// SQLStore is a database/sql implementation of the Store interface
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
	janitor *janitor
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger, opts Options) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	s := &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
		now:     time.Now,
	}
	s.janitor = newJanitor(opts, logger, s.Cleanup)
	s.janitor.start()

	return s, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullJSON encodes v, mapping nil pointers to SQL NULL
func nullJSON(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// SaveUser creates or updates a user
func (s *SQLStore) SaveUser(ctx context.Context, user *ports.User) error {
	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO users (id, email, display_name, active)
		VALUES (?, ?, ?, ?)
	`, user.ID, user.Email, user.DisplayName, user.Active)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser returns a user
func (s *SQLStore) GetUser(ctx context.Context, userID string) (*ports.User, error) {
	var u ports.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, active FROM users WHERE id = ?
	`, userID).Scan(&u.ID, &u.Email, &u.DisplayName, &u.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// ListUsers returns the active users ordered by ID
func (s *SQLStore) ListUsers(ctx context.Context) ([]ports.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, display_name, active FROM users WHERE active = ? ORDER BY id
	`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []ports.User
	for rows.Next() {
		var u ports.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Active); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListBuckets returns every bucket of a user
func (s *SQLStore) ListBuckets(ctx context.Context, userID string) ([]core.RawBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, slug, name, description, priority, enabled, matchers, actions
		FROM buckets
		WHERE user_id = ?
		ORDER BY priority, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	var buckets []core.RawBucket
	for rows.Next() {
		var b core.RawBucket
		var matchers, actions string
		if err := rows.Scan(&b.ID, &b.UserID, &b.Slug, &b.Name, &b.Description, &b.Priority, &b.Enabled, &matchers, &actions); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		b.Matchers = json.RawMessage(matchers)
		b.Actions = json.RawMessage(actions)
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// SaveBuckets upserts buckets by ID in one transaction
func (s *SQLStore) SaveBuckets(ctx context.Context, userID string, buckets []core.Bucket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range buckets {
		if buckets[i].ID == "" {
			buckets[i].ID = uuid.NewString()
		}
		buckets[i].UserID = userID

		raw, err := core.EncodeBucket(buckets[i])
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			REPLACE INTO buckets (id, user_id, slug, name, description, priority, enabled, matchers, actions)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, raw.ID, raw.UserID, raw.Slug, raw.Name, raw.Description, raw.Priority, raw.Enabled, string(raw.Matchers), string(raw.Actions))
		if err != nil {
			return fmt.Errorf("failed to save bucket %s: %w", raw.ID, err)
		}
	}

	return tx.Commit()
}

// AddEmail stores an ingested email. Re-adding a known email is a no-op.
func (s *SQLStore) AddEmail(ctx context.Context, email *core.Email) error {
	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, s.dialect.insertIgnore+` INTO emails
		(id, user_id, account_id, thread_id, message_id, from_addr, subject, snippet, body, received_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, email.ID, email.UserID, email.AccountID, email.ThreadID, email.MessageID, email.From,
		email.Subject, email.Snippet, email.Body, formatTime(email.ReceivedAt), string(core.StatusIngested))
	if err != nil {
		return fmt.Errorf("failed to insert email: %w", err)
	}
	return nil
}

const emailColumns = `id, user_id, account_id, thread_id, message_id, from_addr, subject, snippet, body, received_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEmail(row scanner) (*core.Email, error) {
	var e core.Email
	var receivedAt string
	if err := row.Scan(&e.ID, &e.UserID, &e.AccountID, &e.ThreadID, &e.MessageID, &e.From,
		&e.Subject, &e.Snippet, &e.Body, &receivedAt); err != nil {
		return nil, err
	}
	e.ReceivedAt = parseTime(receivedAt)
	return &e, nil
}

// ListPending returns up to limit ingested emails of a user, oldest first
func (s *SQLStore) ListPending(ctx context.Context, userID string, limit int) ([]core.Email, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE user_id = ? AND status = ?
		ORDER BY received_at, id
		LIMIT ?
	`, userID, string(core.StatusIngested), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending emails: %w", err)
	}
	defer rows.Close()

	var emails []core.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, *e)
	}
	return emails, rows.Err()
}

// GetEmail returns one email owned by the user
func (s *SQLStore) GetEmail(ctx context.Context, userID, emailID string) (*core.Email, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+emailColumns+` FROM emails WHERE id = ? AND user_id = ?
	`, emailID, userID)
	e, err := scanEmail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query email: %w", err)
	}
	return e, nil
}

// GetContextPack returns a user's context pack, or an empty one
func (s *SQLStore) GetContextPack(ctx context.Context, userID string) (*core.ContextPack, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT pack FROM context_packs WHERE user_id = ?`, userID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &core.ContextPack{}, nil
		}
		return nil, fmt.Errorf("failed to query context pack: %w", err)
	}

	var pack core.ContextPack
	if err := json.Unmarshal([]byte(doc), &pack); err != nil {
		return nil, fmt.Errorf("failed to decode context pack: %w", err)
	}
	return &pack, nil
}

// SaveContextPack replaces a user's context pack
func (s *SQLStore) SaveContextPack(ctx context.Context, userID string, pack *core.ContextPack) error {
	doc, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("failed to encode context pack: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `REPLACE INTO context_packs (user_id, pack) VALUES (?, ?)`, userID, string(doc)); err != nil {
		return fmt.Errorf("failed to save context pack: %w", err)
	}
	return nil
}

// SaveOutcome stores the outcome of an email and appends its draft, if any
func (s *SQLStore) SaveOutcome(ctx context.Context, outcome *core.Outcome) error {
	actions, err := json.Marshal(outcome.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}
	classification, err := nullJSON(outcome.Classification, outcome.Classification == nil)
	if err != nil {
		return fmt.Errorf("failed to encode classification: %w", err)
	}
	summary, err := nullJSON(outcome.Summary, outcome.Summary == nil)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	draft, err := nullJSON(outcome.Draft, outcome.Draft == nil)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE emails
		SET status = ?, bucket_id = ?, bucket_slug = ?, actions = ?, classification = ?,
			summary = ?, draft = ?, error = ?, processed_at = ?
		WHERE id = ? AND user_id = ?
	`, string(outcome.Status), outcome.BucketID, outcome.BucketSlug, string(actions), classification,
		summary, draft, outcome.Error, formatTime(outcome.ProcessedAt), outcome.EmailID, outcome.UserID)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("email %s: %w", outcome.EmailID, core.ErrNotFound)
	}

	if outcome.Draft != nil {
		if _, err := s.appendDraft(ctx, tx, outcome.EmailID, outcome.Draft.Text, ""); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetOutcome returns the stored outcome of an email
func (s *SQLStore) GetOutcome(ctx context.Context, emailID string) (*core.Outcome, error) {
	var (
		out                            core.Outcome
		status, actions, processedAt   string
		bucketID, bucketSlug, errText  sql.NullString
		classification, summary, draft sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, bucket_id, bucket_slug, actions, classification, summary, draft, error, processed_at
		FROM emails
		WHERE id = ? AND processed_at IS NOT NULL
	`, emailID).Scan(&out.EmailID, &out.UserID, &status, &bucketID, &bucketSlug, &actions,
		&classification, &summary, &draft, &errText, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query outcome: %w", err)
	}

	out.Status = core.Status(status)
	out.BucketSlug = bucketSlug.String
	out.Error = errText.String
	out.ProcessedAt = parseTime(processedAt)
	if bucketID.Valid {
		id := bucketID.String
		out.BucketID = &id
	}

	docs := []struct {
		doc sql.NullString
		dst any
	}{
		{sql.NullString{String: actions, Valid: true}, &out.Actions},
		{classification, &out.Classification},
		{summary, &out.Summary},
		{draft, &out.Draft},
	}
	for _, d := range docs {
		if !d.doc.Valid {
			continue
		}
		if err := json.Unmarshal([]byte(d.doc.String), d.dst); err != nil {
			return nil, fmt.Errorf("failed to decode outcome of %s: %w", emailID, err)
		}
	}

	return &out, nil
}

// AppendDraft stores a new draft version
func (s *SQLStore) AppendDraft(ctx context.Context, emailID, text, instruction string) (*core.DraftVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails WHERE id = ?`, emailID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to query email: %w", err)
	}
	if exists == 0 {
		return nil, core.ErrNotFound
	}

	v, err := s.appendDraft(ctx, tx, emailID, text, instruction)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit draft: %w", err)
	}
	return v, nil
}

func (s *SQLStore) appendDraft(ctx context.Context, tx *sql.Tx, emailID, text, instruction string) (*core.DraftVersion, error) {
	var latest int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM draft_versions WHERE email_id = ?
	`, emailID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query draft versions: %w", err)
	}

	v := &core.DraftVersion{
		EmailID:     emailID,
		Version:     latest + 1,
		Text:        text,
		Instruction: instruction,
		CreatedAt:   s.now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO draft_versions (email_id, version, draft_text, instruction, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, v.EmailID, v.Version, v.Text, v.Instruction, formatTime(v.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert draft version: %w", err)
	}
	return v, nil
}

// LatestDraft returns the newest draft version of an email
func (s *SQLStore) LatestDraft(ctx context.Context, emailID string) (*core.DraftVersion, error) {
	var v core.DraftVersion
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT email_id, version, draft_text, instruction, created_at
		FROM draft_versions
		WHERE email_id = ?
		ORDER BY version DESC
		LIMIT 1
	`, emailID).Scan(&v.EmailID, &v.Version, &v.Text, &v.Instruction, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query draft: %w", err)
	}
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

// MarkSent marks an email as sent
func (s *SQLStore) MarkSent(ctx context.Context, userID, emailID, sentMessageID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE emails SET status = ?, sent_message_id = ? WHERE id = ? AND user_id = ?
	`, string(core.StatusSent), sentMessageID, emailID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark email sent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// EmailStatus returns the processing status of an email
func (s *SQLStore) EmailStatus(ctx context.Context, userID, emailID string) (core.Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM emails WHERE id = ? AND user_id = ?`, emailID, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrNotFound
		}
		return "", fmt.Errorf("failed to query email status: %w", err)
	}
	return core.Status(status), nil
}

// RecordRun stores the report of one poll cycle
func (s *SQLStore) RecordRun(ctx context.Context, run *core.ProcessingRun) error {
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processing_runs (user_id, started_at, finished_at, report)
		VALUES (?, ?, ?, ?)
	`, run.UserID, formatTime(run.Report.StartedAt), formatTime(run.Report.FinishedAt), string(report))
	if err != nil {
		return fmt.Errorf("failed to insert processing run: %w", err)
	}
	return nil
}

// ListRuns returns the newest processing runs of a user
func (s *SQLStore) ListRuns(ctx context.Context, userID string, limit int) ([]core.ProcessingRun, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT report FROM processing_runs WHERE user_id = ? ORDER BY id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query processing runs: %w", err)
	}
	defer rows.Close()

	var runs []core.ProcessingRun
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan processing run: %w", err)
		}
		run := core.ProcessingRun{UserID: userID}
		if err := json.Unmarshal([]byte(doc), &run.Report); err != nil {
			return nil, fmt.Errorf("failed to decode processing run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Cleanup removes processing runs that finished before the retention window
func (s *SQLStore) Cleanup(ctx context.Context, retention time.Duration) error {
	cutoff := formatTime(s.now().Add(-retention))
	result, err := s.db.ExecContext(ctx, `DELETE FROM processing_runs WHERE finished_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean up processing runs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up processing runs", zap.Int64("removed", rowsAffected))
	}
	return nil
}

// Close stops the background cleanup task and closes the database connection
func (s *SQLStore) Close() error {
	s.janitor.stop()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", s.dialect.name, err)
	}
	return nil
}
