package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("INTERVIEW_COACH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INTERVIEW_COACH_TEST_POSTGRES_DSN not set")
	}

	store, err := NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresFeedbackLifecycle(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()

	interviewID := uuid.NewString()
	userID := uuid.NewString()
	if err := store.CreateInterview(ctx, Interview{ID: interviewID, UserID: userID, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateInterview failed: %v", err)
	}

	fb := sampleFeedback(uuid.NewString(), interviewID, userID, 55)
	if err := store.UpsertFeedback(ctx, fb); err != nil {
		t.Fatalf("UpsertFeedback failed: %v", err)
	}
	fb.TotalScore = 65
	if err := store.UpsertFeedback(ctx, fb); err != nil {
		t.Fatalf("UpsertFeedback overwrite failed: %v", err)
	}
	if err := store.UpdateInterviewScore(ctx, interviewID, 65); err != nil {
		t.Fatalf("UpdateInterviewScore failed: %v", err)
	}

	got, err := store.GetFeedback(ctx, interviewID, userID)
	if err != nil {
		t.Fatalf("GetFeedback failed: %v", err)
	}
	if got.TotalScore != 65 {
		t.Fatalf("expected overwritten score 65, got %d", got.TotalScore)
	}

	iv, err := store.GetInterview(ctx, interviewID)
	if err != nil {
		t.Fatalf("GetInterview failed: %v", err)
	}
	if iv.Score == nil || *iv.Score != 65 {
		t.Fatalf("expected interview score 65, got %v", iv.Score)
	}

	if _, err := store.GetFeedback(ctx, interviewID, "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
