package emailstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/mailmatch/internal/db"
	"github.com/ziadkadry99/mailmatch/internal/pipeline"
)

// Store persists emails and threads in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const emailColumns = `id, message_id, subject, sender, recipient, content,
	COALESCE(html_content, ''), received_date, thread_id, embedding_id,
	COALESCE(parent_id, ''), importance_score, is_processed, COALESCE(category, '')`

// Create stores a new email, creating or updating its thread row. Missing
// id, thread id and received date are filled in.
func (s *Store) Create(ctx context.Context, e *Email) (*Email, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ThreadID == "" {
		e.ThreadID = ThreadKey(e.Subject)
	}
	if e.ReceivedDate.IsZero() {
		e.ReceivedDate = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO email_threads (id, thread_id, subject, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			email_count = email_count + 1,
			last_updated = excluded.last_updated`,
		uuid.New().String(), e.ThreadID, e.Subject, e.ReceivedDate)
	if err != nil {
		return nil, fmt.Errorf("upserting thread: %w", err)
	}

	var parentID any
	if e.ParentID != "" {
		parentID = e.ParentID
	}
	var htmlContent any
	if e.HTMLContent != "" {
		htmlContent = e.HTMLContent
	}
	var category any
	if e.Category != "" {
		category = e.Category
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO emails (id, message_id, subject, sender, recipient, content,
			html_content, received_date, thread_id, embedding_id, parent_id,
			importance_score, is_processed, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MessageID, e.Subject, e.Sender, e.Recipient, e.Content,
		htmlContent, e.ReceivedDate, e.ThreadID, e.EmbeddingID, parentID,
		e.ImportanceScore, e.IsProcessed, category)
	if err != nil {
		return nil, fmt.Errorf("inserting email: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing email insert: %w", err)
	}
	return e, nil
}

// GetByID returns the email with the given id, or nil if it does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Email, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id)
	return scanEmail(row)
}

// GetByMessageID returns the email with the given RFC 5322 message id, or
// nil if it does not exist.
func (s *Store) GetByMessageID(ctx context.Context, messageID string) (*Email, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE message_id = ?`, messageID)
	return scanEmail(row)
}

// GetByThreadID returns the earliest email in a thread, or nil if the thread
// has none. The earliest message is the thread's representative document.
func (s *Store) GetByThreadID(ctx context.Context, threadID string) (*Email, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails
		 WHERE thread_id = ? ORDER BY received_date ASC, id ASC LIMIT 1`, threadID)
	return scanEmail(row)
}

// GetThread returns the thread row, or nil if it does not exist.
func (s *Store) GetThread(ctx context.Context, threadID string) (*EmailThread, error) {
	var t EmailThread
	err := s.db.QueryRowContext(ctx, `
		SELECT id, thread_id, subject, last_updated, participant_count, email_count
		FROM email_threads WHERE thread_id = ?`, threadID).
		Scan(&t.ID, &t.ThreadID, &t.Subject, &t.LastUpdated, &t.ParticipantCount, &t.EmailCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}
	return &t, nil
}

// List returns emails ordered by received date descending.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Email, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails
		 ORDER BY received_date DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing emails: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

// ListAll returns every stored email, oldest first. Used for reindexing.
func (s *Store) ListAll(ctx context.Context) ([]Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails ORDER BY received_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing all emails: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

// ListByThread returns every email in a thread, oldest first.
func (s *Store) ListByThread(ctx context.Context, threadID string) ([]Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails
		 WHERE thread_id = ? ORDER BY received_date ASC, id ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("listing thread emails: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

// Replies returns the direct replies to the given email.
func (s *Store) Replies(ctx context.Context, parentID string) ([]Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails
		 WHERE parent_id = ? ORDER BY received_date ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing replies: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

// SetEmbeddingID records the vector index entry for an email and marks it
// processed.
func (s *Store) SetEmbeddingID(ctx context.Context, id, embeddingID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE emails SET embedding_id = ?, is_processed = 1 WHERE id = ?`,
		embeddingID, id)
	if err != nil {
		return fmt.Errorf("updating embedding id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("email %s not found", id)
	}
	return nil
}

// SetParentID links an email to its reply parent.
func (s *Store) SetParentID(ctx context.Context, id, parentID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE emails SET parent_id = ? WHERE id = ?`, parentID, id)
	if err != nil {
		return fmt.Errorf("updating parent id: %w", err)
	}
	return nil
}

// TextSearch runs a plain substring search over subject, content and sender.
// It serves as a fallback when the vector index is empty.
func (s *Store) TextSearch(ctx context.Context, query string, limit int) ([]Email, error) {
	if limit < 1 {
		limit = 10
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails
		 WHERE subject LIKE ? OR content LIKE ? OR sender LIKE ?
		 ORDER BY received_date DESC LIMIT ?`,
		pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer rows.Close()
	return scanEmails(rows)
}

// Count returns the number of stored emails.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting emails: %w", err)
	}
	return n, nil
}

// LookupByGroupKey implements pipeline.Resolver by resolving a thread id to
// its representative email.
func (s *Store) LookupByGroupKey(ctx context.Context, key string) (*pipeline.Document, error) {
	e, err := s.GetByThreadID(ctx, key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, nil
	}
	return &pipeline.Document{
		ID:       e.ID,
		Subject:  e.Subject,
		Content:  e.Content,
		GroupKey: e.ThreadID,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row rowScanner) (*Email, error) {
	var e Email
	err := row.Scan(&e.ID, &e.MessageID, &e.Subject, &e.Sender, &e.Recipient,
		&e.Content, &e.HTMLContent, &e.ReceivedDate, &e.ThreadID, &e.EmbeddingID,
		&e.ParentID, &e.ImportanceScore, &e.IsProcessed, &e.Category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning email: %w", err)
	}
	return &e, nil
}

func scanEmails(rows *sql.Rows) ([]Email, error) {
	var out []Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating emails: %w", err)
	}
	return out, nil
}
