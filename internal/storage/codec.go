package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const interviewColumns = `id, user_id, role, level, type, created_at, finalized, questions, techstack, score`

const feedbackColumns = `id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at`

func scanInterview(row rowScanner) (Interview, error) {
	var iv Interview
	var createdAt, questions, techstack string
	var finalized int
	var score sql.NullInt64
	if err := row.Scan(&iv.ID, &iv.UserID, &iv.Role, &iv.Level, &iv.Type, &createdAt, &finalized, &questions, &techstack, &score); err != nil {
		return Interview{}, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Interview{}, fmt.Errorf("parse interview %s created_at: %w", iv.ID, err)
	}
	iv.CreatedAt = parsed
	iv.Finalized = finalized != 0

	if err := decodeList(questions, &iv.Questions); err != nil {
		return Interview{}, fmt.Errorf("decode interview %s questions: %w", iv.ID, err)
	}
	if err := decodeList(techstack, &iv.TechStack); err != nil {
		return Interview{}, fmt.Errorf("decode interview %s techstack: %w", iv.ID, err)
	}
	if score.Valid {
		s := int(score.Int64)
		iv.Score = &s
	}
	return iv, nil
}

func scanFeedback(row rowScanner) (Feedback, error) {
	var fb Feedback
	var categories, strengths, areas string
	if err := row.Scan(&fb.ID, &fb.InterviewID, &fb.UserID, &fb.TotalScore, &categories, &strengths, &areas, &fb.FinalAssessment, &fb.CreatedAt); err != nil {
		return Feedback{}, err
	}

	if err := decodeList(categories, &fb.CategoryScores); err != nil {
		return Feedback{}, fmt.Errorf("decode feedback %s category_scores: %w", fb.ID, err)
	}
	if err := decodeList(strengths, &fb.Strengths); err != nil {
		return Feedback{}, fmt.Errorf("decode feedback %s strengths: %w", fb.ID, err)
	}
	if err := decodeList(areas, &fb.AreasForImprovement); err != nil {
		return Feedback{}, fmt.Errorf("decode feedback %s areas_for_improvement: %w", fb.ID, err)
	}
	return fb, nil
}

// feedbackArgs returns the column values in feedbackColumns order.
func feedbackArgs(fb Feedback) ([]any, error) {
	categories, err := encodeList(fb.CategoryScores)
	if err != nil {
		return nil, fmt.Errorf("encode category_scores: %w", err)
	}
	strengths, err := encodeList(fb.Strengths)
	if err != nil {
		return nil, fmt.Errorf("encode strengths: %w", err)
	}
	areas, err := encodeList(fb.AreasForImprovement)
	if err != nil {
		return nil, fmt.Errorf("encode areas_for_improvement: %w", err)
	}
	return []any{fb.ID, fb.InterviewID, fb.UserID, fb.TotalScore, categories, strengths, areas, fb.FinalAssessment, fb.CreatedAt}, nil
}

// interviewArgs returns the column values in interviewColumns order.
func interviewArgs(iv Interview) ([]any, error) {
	questions, err := encodeList(iv.Questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	techstack, err := encodeList(iv.TechStack)
	if err != nil {
		return nil, fmt.Errorf("encode techstack: %w", err)
	}
	finalized := 0
	if iv.Finalized {
		finalized = 1
	}
	var score sql.NullInt64
	if iv.Score != nil {
		score = sql.NullInt64{Int64: int64(*iv.Score), Valid: true}
	}
	return []any{iv.ID, iv.UserID, iv.Role, iv.Level, iv.Type, formatTime(iv.CreatedAt), finalized, questions, techstack, score}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList[T any](raw string, out *[]T) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*out = []T{}
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	return nil
}
