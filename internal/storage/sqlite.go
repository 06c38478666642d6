package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultSQLitePath is used when no database path is configured.
var DefaultSQLitePath = filepath.Join("data", "interview-coach.db")

type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = DefaultSQLitePath
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS interviews (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			finalized INTEGER NOT NULL DEFAULT 0,
			questions TEXT NOT NULL DEFAULT '[]',
			techstack TEXT NOT NULL DEFAULT '[]',
			score INTEGER
		);
	`); err != nil {
		return fmt.Errorf("create interviews table: %w", err)
	}

	// interview_id is a correlation, not a foreign key: feedback and
	// interviews are independent documents.
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			interview_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			total_score INTEGER NOT NULL,
			category_scores TEXT NOT NULL DEFAULT '[]',
			strengths TEXT NOT NULL DEFAULT '[]',
			areas_for_improvement TEXT NOT NULL DEFAULT '[]',
			final_assessment TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create feedback table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_interviews_user ON interviews(user_id, created_at)"); err != nil {
		return fmt.Errorf("create interviews index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_feedback_interview_user ON feedback(interview_id, user_id)"); err != nil {
		return fmt.Errorf("create feedback index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path is the database file the store was opened on.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) ListInterviews(ctx context.Context, ownerID string) ([]Interview, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+interviewColumns+`
		 FROM interviews
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query interviews for user %s: %w", ownerID, err)
	}
	defer func() { _ = rows.Close() }()

	interviews := make([]Interview, 0, 16)
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		interviews = append(interviews, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interview rows: %w", err)
	}

	return interviews, nil
}

func (s *SQLiteStore) GetInterview(ctx context.Context, id string) (Interview, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id)

	iv, err := scanInterview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Interview{}, fmt.Errorf("interview %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Interview{}, fmt.Errorf("query interview %s: %w", id, err)
	}
	return iv, nil
}

func (s *SQLiteStore) CreateInterview(ctx context.Context, iv Interview) error {
	if err := requireID("interview", iv.ID); err != nil {
		return err
	}
	args, err := interviewArgs(iv)
	if err != nil {
		return fmt.Errorf("create interview %s: %w", iv.ID, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO interviews(`+interviewColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	); err != nil {
		return fmt.Errorf("create interview %s: %w", iv.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateInterviewScore(ctx context.Context, interviewID string, score int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE interviews SET score = ? WHERE id = ?`, score, interviewID)
	if err != nil {
		return fmt.Errorf("update score for interview %s: %w", interviewID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update score rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update score for interview %s: %w", interviewID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetFeedback(ctx context.Context, interviewID, ownerID string) (Feedback, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+`
		 FROM feedback
		 WHERE interview_id = ? AND user_id = ?
		 ORDER BY created_at DESC, id ASC
		 LIMIT 1`,
		interviewID,
		ownerID,
	)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Feedback{}, fmt.Errorf("feedback for interview %s: %w", interviewID, ErrNotFound)
	}
	if err != nil {
		return Feedback{}, fmt.Errorf("query feedback for interview %s: %w", interviewID, err)
	}
	return fb, nil
}

// UpsertFeedback writes fb under fb.ID, replacing every field of an
// existing record with the same id.
func (s *SQLiteStore) UpsertFeedback(ctx context.Context, fb Feedback) error {
	if err := requireID("feedback", fb.ID); err != nil {
		return err
	}
	args, err := feedbackArgs(fb)
	if err != nil {
		return fmt.Errorf("upsert feedback %s: %w", fb.ID, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback(`+feedbackColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			interview_id = excluded.interview_id,
			user_id = excluded.user_id,
			total_score = excluded.total_score,
			category_scores = excluded.category_scores,
			strengths = excluded.strengths,
			areas_for_improvement = excluded.areas_for_improvement,
			final_assessment = excluded.final_assessment,
			created_at = excluded.created_at`,
		args...,
	); err != nil {
		return fmt.Errorf("upsert feedback %s: %w", fb.ID, err)
	}
	return nil
}

// EnsureUser stores the profile the first time a user is seen and reports
// whether a row was created.
func (s *SQLiteStore) EnsureUser(ctx context.Context, u User) (bool, error) {
	if err := requireID("user", u.ID); err != nil {
		return false, err
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users(id, first_name, last_name, email, created_at) VALUES(?, ?, ?, ?, ?)`,
		u.ID,
		u.FirstName,
		u.LastName,
		u.Email,
		formatTime(createdAt),
	)
	if err != nil {
		return false, fmt.Errorf("ensure user %s: %w", u.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure user rows affected: %w", err)
	}
	return rows > 0, nil
}

// Backup writes a consistent copy of the database to dst, replacing any
// existing file.
func (s *SQLiteStore) Backup(ctx context.Context, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old backup: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return nil
}
