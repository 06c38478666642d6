package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/interview-coach/internal/llm"
	"github.com/sjawhar/interview-coach/internal/storage"
	"github.com/sjawhar/interview-coach/internal/transcript"
)

// isoLayout matches JavaScript's Date.toISOString, which existing clients parse.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Store is the subset of storage.Store the pipeline writes through.
type Store interface {
	UpsertFeedback(ctx context.Context, fb storage.Feedback) error
	UpdateInterviewScore(ctx context.Context, interviewID string, score int) error
	GetFeedback(ctx context.Context, interviewID, ownerID string) (storage.Feedback, error)
}

// Notifier is told about every feedback record after both writes succeed.
type Notifier interface {
	Notify(ctx context.Context, fb storage.Feedback) error
}

type Request struct {
	InterviewID string
	UserID      string
	Transcript  []transcript.Entry
	FeedbackID  string
}

type Result struct {
	FeedbackID string
	Feedback   storage.Feedback
}

type Pipeline struct {
	client    llm.Client
	store     Store
	notifiers []Notifier
	backoff   []time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
	newID     func() string
}

func NewPipeline(client llm.Client, store Store, notifiers ...Notifier) *Pipeline {
	return &Pipeline{
		client:    client,
		store:     store,
		notifiers: notifiers,
		backoff:   []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second},
		sleep:     sleepContext,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (p *Pipeline) Generate(ctx context.Context, req Request) (Result, error) {
	const op = "generate feedback"

	if err := validateRequest(req); err != nil {
		return Result{}, newError(KindValidation, op, err)
	}

	messages := buildMessages(transcript.Format(req.Transcript))
	eval, err := p.evaluate(ctx, messages)
	if err != nil {
		return Result{}, newError(KindGeneration, op, err)
	}

	id := strings.TrimSpace(req.FeedbackID)
	if id == "" {
		id = p.newID()
	}

	fb := storage.Feedback{
		ID:                  id,
		InterviewID:         req.InterviewID,
		UserID:              req.UserID,
		TotalScore:          eval.TotalScore,
		CategoryScores:      eval.CategoryScores,
		Strengths:           eval.Strengths,
		AreasForImprovement: eval.AreasForImprovement,
		FinalAssessment:     eval.FinalAssessment,
		CreatedAt:           p.now().UTC().Format(isoLayout),
	}

	if err := p.store.UpsertFeedback(ctx, fb); err != nil {
		return Result{}, newError(KindPersistence, op, err)
	}
	if err := p.store.UpdateInterviewScore(ctx, req.InterviewID, fb.TotalScore); err != nil {
		return Result{}, newError(KindPersistence, op, err)
	}

	for _, n := range p.notifiers {
		if err := n.Notify(ctx, fb); err != nil {
			slog.Warn("feedback: notifier failed", "feedback_id", fb.ID, "interview_id", fb.InterviewID, "error", err)
		}
	}

	return Result{FeedbackID: id, Feedback: fb}, nil
}

// Lookup returns the stored feedback for an interview owned by userID.
func (p *Pipeline) Lookup(ctx context.Context, interviewID, userID string) (storage.Feedback, error) {
	const op = "lookup feedback"

	if strings.TrimSpace(interviewID) == "" || strings.TrimSpace(userID) == "" {
		return storage.Feedback{}, newError(KindValidation, op, errors.New("interview id and user id are required"))
	}

	fb, err := p.store.GetFeedback(ctx, interviewID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Feedback{}, newError(KindNotFound, op, err)
	}
	if err != nil {
		return storage.Feedback{}, newError(KindPersistence, op, err)
	}
	return fb, nil
}

// evaluate retries the model call on transport failures, waiting backoff[i]
// after the i-th failure. A response that arrives but does not validate is
// returned immediately.
func (p *Pipeline) evaluate(ctx context.Context, messages []llm.Message) (evaluation, error) {
	for attempt := 0; ; attempt++ {
		raw, err := p.client.CompleteJSON(ctx, messages, Schema())
		if err == nil {
			return parseEvaluation(raw)
		}
		if attempt == len(p.backoff) {
			return evaluation{}, fmt.Errorf("model call failed after %d attempts: %w", attempt+1, err)
		}
		if waitErr := p.sleep(ctx, p.backoff[attempt]); waitErr != nil {
			return evaluation{}, fmt.Errorf("model call abandoned: %w", errors.Join(err, waitErr))
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func validateRequest(req Request) error {
	var missing []string
	if strings.TrimSpace(req.InterviewID) == "" {
		missing = append(missing, "interviewId")
	}
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, "userId")
	}
	if len(req.Transcript) == 0 {
		missing = append(missing, "transcript")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return transcript.Validate(req.Transcript)
}
