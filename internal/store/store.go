package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/trustgate/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (scope, key)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		participant_id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_kind ON submissions(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordSubmission stores a copy of a row handed to the submission gateway.
func (s *Store) RecordSubmission(kind model.SubmissionKind, participantID, body string) error {
	_, err := s.db.Exec(
		`INSERT INTO submissions (kind, participant_id, body, created_at) VALUES (?, ?, ?, ?)`,
		kind, participantID, body, time.Now(),
	)
	return err
}

// ListSubmissions returns mirrored rows in insertion order. An empty kind
// returns every row.
func (s *Store) ListSubmissions(kind model.SubmissionKind) ([]model.Submission, error) {
	query := `SELECT id, kind, participant_id, body, created_at FROM submissions`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.Kind, &sub.ParticipantID, &sub.Body, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SubmissionCount returns the number of mirrored rows of the given kind.
func (s *Store) SubmissionCount(kind model.SubmissionKind) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM submissions WHERE kind = ?`, kind).Scan(&count)
	return count, err
}
