// Package store persists imported emails and unsubscribe attempts in a
// local SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Email is one imported message.
type Email struct {
	ID         int64
	MessageID  string
	Subject    string
	FromName   string
	FromEmail  string
	Snippet    string
	BodyText   string
	BodyHTML   string
	ReceivedAt time.Time
	ImportedAt time.Time
	Archived   bool
}

// Attempt is one recorded unsubscribe outcome.
type Attempt struct {
	ID          int64
	EmailID     int64
	Link        string
	Success     bool
	Error       string
	AttemptedAt time.Time
}

// Stats summarizes the database for the status command and the web API.
type Stats struct {
	Emails            int
	Attempts          int
	Unsubscribed      int
	FailedAttempts    int
	DistinctSenders   int
	LastAttemptedAt   time.Time
	LastAttemptedSeen bool
}

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS emails (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL UNIQUE,
		subject TEXT,
		from_name TEXT,
		from_email TEXT,
		snippet TEXT,
		body_text TEXT,
		body_html TEXT,
		received_at DATETIME,
		imported_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		archived INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_emails_from_email ON emails(from_email);
	CREATE INDEX IF NOT EXISTS idx_emails_received_at ON emails(received_at);

	CREATE TABLE IF NOT EXISTS unsubscribe_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email_id INTEGER NOT NULL,
		link TEXT,
		success INTEGER NOT NULL,
		error TEXT,
		attempted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (email_id) REFERENCES emails(id)
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_email_id ON unsubscribe_attempts(email_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_success ON unsubscribe_attempts(success);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertEmail inserts a message or refreshes its bodies when the message_id
// already exists. Returns the row ID either way.
func (s *Store) UpsertEmail(e *Email) (int64, error) {
	snippet := e.Snippet
	if snippet == "" {
		snippet = makeSnippet(e.BodyText)
	}

	query := `
	INSERT INTO emails (message_id, subject, from_name, from_email, snippet, body_text, body_html, received_at, imported_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(message_id) DO UPDATE SET
		subject = excluded.subject,
		snippet = excluded.snippet,
		body_text = excluded.body_text,
		body_html = excluded.body_html
	`

	if _, err := s.db.Exec(query,
		e.MessageID, e.Subject, e.FromName, e.FromEmail, snippet,
		e.BodyText, e.BodyHTML, e.ReceivedAt, time.Now(),
	); err != nil {
		return 0, fmt.Errorf("failed to upsert email: %w", err)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM emails WHERE message_id = ?`, e.MessageID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read email id: %w", err)
	}
	e.ID = id
	return id, nil
}

const emailColumns = `id, message_id, subject, from_name, from_email, snippet, body_text, body_html, received_at, imported_at, archived`

// scanEmail handles nullable columns when scanning a row.
func scanEmail(scanner interface{ Scan(...any) error }) (*Email, error) {
	var e Email
	var subject, fromName, fromEmail, snippet, bodyText, bodyHTML sql.NullString
	var receivedAt, importedAt sql.NullTime
	var archived int

	err := scanner.Scan(&e.ID, &e.MessageID, &subject, &fromName, &fromEmail,
		&snippet, &bodyText, &bodyHTML, &receivedAt, &importedAt, &archived)
	if err != nil {
		return nil, err
	}

	e.Subject = subject.String
	e.FromName = fromName.String
	e.FromEmail = fromEmail.String
	e.Snippet = snippet.String
	e.BodyText = bodyText.String
	e.BodyHTML = bodyHTML.String
	e.ReceivedAt = receivedAt.Time
	e.ImportedAt = importedAt.Time
	e.Archived = archived == 1
	return &e, nil
}

// GetEmail returns a single email by row ID, or nil when absent.
func (s *Store) GetEmail(id int64) (*Email, error) {
	e, err := scanEmail(s.db.QueryRow(
		`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query email: %w", err)
	}
	return e, nil
}

// GetEmailsByIDs returns the emails with the given row IDs, skipping any that
// do not exist.
func (s *Store) GetEmailsByIDs(ids []int64) ([]Email, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query(
		`SELECT `+emailColumns+` FROM emails WHERE id IN (`+placeholders+`) ORDER BY received_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	var emails []Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, *e)
	}
	return emails, rows.Err()
}

// ListEmails returns the most recent emails, capped at limit.
func (s *Store) ListEmails(limit int) ([]Email, error) {
	rows, err := s.db.Query(
		`SELECT `+emailColumns+` FROM emails ORDER BY received_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	var emails []Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, *e)
	}
	return emails, rows.Err()
}

// MarkArchived flags an email as moved out of the inbox.
func (s *Store) MarkArchived(id int64) error {
	if _, err := s.db.Exec(`UPDATE emails SET archived = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark email archived: %w", err)
	}
	return nil
}

// RecordOutcome persists one unsubscribe attempt.
func (s *Store) RecordOutcome(emailID int64, link string, success bool, errMsg string) error {
	successInt := 0
	if success {
		successInt = 1
	}

	query := `
	INSERT INTO unsubscribe_attempts (email_id, link, success, error, attempted_at)
	VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, emailID, link, successInt, errMsg, time.Now()); err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// GetAttempts returns the attempts recorded for an email, newest first.
func (s *Store) GetAttempts(emailID int64) ([]Attempt, error) {
	query := `SELECT id, email_id, link, success, error, attempted_at
		FROM unsubscribe_attempts WHERE email_id = ? ORDER BY attempted_at DESC`

	rows, err := s.db.Query(query, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var link, errStr sql.NullString
		var successInt int
		var attemptedAt sql.NullTime

		if err := rows.Scan(&a.ID, &a.EmailID, &link, &successInt, &errStr, &attemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Link = link.String
		a.Error = errStr.String
		a.Success = successInt == 1
		a.AttemptedAt = attemptedAt.Time
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// GetStats summarizes imported emails and attempt outcomes.
func (s *Store) GetStats() (*Stats, error) {
	var st Stats

	err := s.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT from_email) FROM emails`).
		Scan(&st.Emails, &st.DistinctSenders)
	if err != nil {
		return nil, fmt.Errorf("failed to get email stats: %w", err)
	}

	var succeeded, failed sql.NullInt64
	var last sql.NullTime
	err = s.db.QueryRow(`SELECT COUNT(*),
		SUM(CASE WHEN success=1 THEN 1 ELSE 0 END),
		SUM(CASE WHEN success=0 THEN 1 ELSE 0 END),
		MAX(attempted_at) FROM unsubscribe_attempts`).
		Scan(&st.Attempts, &succeeded, &failed, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	st.Unsubscribed = int(succeeded.Int64)
	st.FailedAttempts = int(failed.Int64)
	st.LastAttemptedAt = last.Time
	st.LastAttemptedSeen = last.Valid

	return &st, nil
}

func makeSnippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > 120 {
		return string(runes[:120])
	}
	return text
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mailsweep.db"
	}
	return filepath.Join(home, ".mailsweep", "mailsweep.db")
}
