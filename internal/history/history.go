// Package history persists unsubscribe attempts so repeated runs can skip
// senders that were already handled. The analysis core itself stays
// stateless; only the CLI and web callers record here.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusManual    Status = "manual" // mailto target surfaced for the operator
)

// Attempt is one recorded unsubscribe attempt
type Attempt struct {
	ID         int64
	MessageID  string
	Sender     string
	Domain     string
	Link       string
	Method     string
	Confidence float64
	Status     Status
	Detail     string
	CreatedAt  time.Time
}

// Summary aggregates attempts for the status views
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Manual    int
	Domains   int
}

type Store struct {
	db *sql.DB
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".email-cleaner", "history.db")
}

func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
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

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS unsubscribe_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		domain TEXT NOT NULL,
		link TEXT,
		method TEXT,
		confidence REAL,
		status TEXT NOT NULL,
		detail TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ua_domain ON unsubscribe_attempts(domain);
	CREATE INDEX IF NOT EXISTS idx_ua_status ON unsubscribe_attempts(status);
	CREATE INDEX IF NOT EXISTS idx_ua_created_at ON unsubscribe_attempts(created_at);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Add(attempt *Attempt) error {
	query := `
	INSERT INTO unsubscribe_attempts (message_id, sender, domain, link, method, confidence, status, detail, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		attempt.MessageID,
		attempt.Sender,
		attempt.Domain,
		attempt.Link,
		attempt.Method,
		attempt.Confidence,
		attempt.Status,
		attempt.Detail,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	attempt.ID = id
	return nil
}

// scanAttempt handles nullable columns when scanning a row
func scanAttempt(scanner interface{ Scan(...any) error }) (*Attempt, error) {
	var a Attempt
	var link, method, detail sql.NullString
	var confidence sql.NullFloat64
	var createdAt sql.NullTime

	err := scanner.Scan(&a.ID, &a.MessageID, &a.Sender, &a.Domain,
		&link, &method, &confidence, &a.Status, &detail, &createdAt)
	if err != nil {
		return nil, err
	}

	a.Link = link.String
	a.Method = method.String
	a.Confidence = confidence.Float64
	a.Detail = detail.String
	a.CreatedAt = createdAt.Time
	return &a, nil
}

const attemptColumns = `id, message_id, sender, domain, link, method, confidence, status, detail, created_at`

// LastAttemptForDomain returns the most recent attempt against a sender
// domain, or nil when there is none
func (s *Store) LastAttemptForDomain(domain string) (*Attempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM unsubscribe_attempts WHERE domain = ? ORDER BY created_at DESC LIMIT 1`

	attempt, err := scanAttempt(s.db.QueryRow(query, domain))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt: %w", err)
	}
	return attempt, nil
}

// SucceededRecently reports whether the domain's latest attempt succeeded
// within the given window. Callers use it to drop already-handled senders
// from a new batch.
func (s *Store) SucceededRecently(domain string, within time.Duration) (bool, error) {
	last, err := s.LastAttemptForDomain(domain)
	if err != nil || last == nil {
		return false, err
	}
	return last.Status == StatusSucceeded && time.Since(last.CreatedAt) <= within, nil
}

func (s *Store) RecentAttempts(limit int) ([]Attempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM unsubscribe_attempts ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

func (s *Store) Summarize() (*Summary, error) {
	summary := &Summary{}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM unsubscribe_attempts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.Total += count
		switch status {
		case StatusSucceeded:
			summary.Succeeded += count
		case StatusFailed:
			summary.Failed += count
		case StatusManual:
			summary.Manual += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT domain) FROM unsubscribe_attempts`).Scan(&summary.Domains); err != nil {
		return nil, fmt.Errorf("failed to count domains: %w", err)
	}
	return summary, nil
}
