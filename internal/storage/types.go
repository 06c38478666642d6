package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("record not found")

// timeLayout is fixed width so that TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Interview struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Level     string    `json:"level"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Finalized bool      `json:"finalized"`
	Questions []string  `json:"questions"`
	TechStack []string  `json:"techstack"`
	UserID    string    `json:"userId"`
	// Score stays nil until feedback has been generated for the interview.
	Score *int `json:"score,omitempty"`
}

type CategoryScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type Feedback struct {
	ID                  string          `json:"id"`
	InterviewID         string          `json:"interviewId"`
	UserID              string          `json:"userId"`
	TotalScore          int             `json:"totalScore"`
	CategoryScores      []CategoryScore `json:"categoryScores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment"`
	CreatedAt           string          `json:"createdAt"`
}

type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence gateway shared by the SQLite and Postgres
// backends. Every query is scoped by the identity the caller supplies.
type Store interface {
	ListInterviews(ctx context.Context, ownerID string) ([]Interview, error)
	GetInterview(ctx context.Context, id string) (Interview, error)
	CreateInterview(ctx context.Context, iv Interview) error
	UpdateInterviewScore(ctx context.Context, interviewID string, score int) error
	GetFeedback(ctx context.Context, interviewID, ownerID string) (Feedback, error)
	UpsertFeedback(ctx context.Context, fb Feedback) error
	EnsureUser(ctx context.Context, u User) (bool, error)
	Close() error
}
