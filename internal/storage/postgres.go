package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresStore is the Store backend for shared deployments. Schema and
// encodings match SQLiteStore so records move between backends unchanged.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"interviews table", `CREATE TABLE IF NOT EXISTS interviews (
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
		)`},
		{"feedback table", `CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			interview_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			total_score INTEGER NOT NULL,
			category_scores TEXT NOT NULL DEFAULT '[]',
			strengths TEXT NOT NULL DEFAULT '[]',
			areas_for_improvement TEXT NOT NULL DEFAULT '[]',
			final_assessment TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`},
		{"users table", `CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`},
		{"interviews index", `CREATE INDEX IF NOT EXISTS idx_interviews_user ON interviews(user_id, created_at)`},
		{"feedback index", `CREATE INDEX IF NOT EXISTS idx_feedback_interview_user ON feedback(interview_id, user_id)`},
	}

	for _, st := range statements {
		if _, err := s.pool.Exec(ctx, st.sql); err != nil {
			return fmt.Errorf("create %s: %w", st.name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ListInterviews(ctx context.Context, ownerID string) ([]Interview, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+interviewColumns+`
		 FROM interviews
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query interviews for user %s: %w", ownerID, err)
	}
	defer rows.Close()

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

func (s *PostgresStore) GetInterview(ctx context.Context, id string) (Interview, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = $1`, id)

	iv, err := scanInterview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Interview{}, fmt.Errorf("interview %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Interview{}, fmt.Errorf("query interview %s: %w", id, err)
	}
	return iv, nil
}

func (s *PostgresStore) CreateInterview(ctx context.Context, iv Interview) error {
	if err := requireID("interview", iv.ID); err != nil {
		return err
	}
	args, err := interviewArgs(iv)
	if err != nil {
		return fmt.Errorf("create interview %s: %w", iv.ID, err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO interviews(`+interviewColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		args...,
	); err != nil {
		return fmt.Errorf("create interview %s: %w", iv.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateInterviewScore(ctx context.Context, interviewID string, score int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE interviews SET score = $1 WHERE id = $2`, score, interviewID)
	if err != nil {
		return fmt.Errorf("update score for interview %s: %w", interviewID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update score for interview %s: %w", interviewID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetFeedback(ctx context.Context, interviewID, ownerID string) (Feedback, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+feedbackColumns+`
		 FROM feedback
		 WHERE interview_id = $1 AND user_id = $2
		 ORDER BY created_at DESC, id ASC
		 LIMIT 1`,
		interviewID,
		ownerID,
	)

	fb, err := scanFeedback(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Feedback{}, fmt.Errorf("feedback for interview %s: %w", interviewID, ErrNotFound)
	}
	if err != nil {
		return Feedback{}, fmt.Errorf("query feedback for interview %s: %w", interviewID, err)
	}
	return fb, nil
}

func (s *PostgresStore) UpsertFeedback(ctx context.Context, fb Feedback) error {
	if err := requireID("feedback", fb.ID); err != nil {
		return err
	}
	args, err := feedbackArgs(fb)
	if err != nil {
		return fmt.Errorf("upsert feedback %s: %w", fb.ID, err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO feedback(`+feedbackColumns+`) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			interview_id = EXCLUDED.interview_id,
			user_id = EXCLUDED.user_id,
			total_score = EXCLUDED.total_score,
			category_scores = EXCLUDED.category_scores,
			strengths = EXCLUDED.strengths,
			areas_for_improvement = EXCLUDED.areas_for_improvement,
			final_assessment = EXCLUDED.final_assessment,
			created_at = EXCLUDED.created_at`,
		args...,
	); err != nil {
		return fmt.Errorf("upsert feedback %s: %w", fb.ID, err)
	}
	return nil
}

func (s *PostgresStore) EnsureUser(ctx context.Context, u User) (bool, error) {
	if err := requireID("user", u.ID); err != nil {
		return false, err
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO users(id, first_name, last_name, email, created_at) VALUES($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		u.ID,
		u.FirstName,
		u.LastName,
		u.Email,
		formatTime(createdAt),
	)
	if err != nil {
		return false, fmt.Errorf("ensure user %s: %w", u.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}
