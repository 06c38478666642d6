package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/interview-coach/internal/feedback"
	"github.com/sjawhar/interview-coach/internal/transcript"
)

const (
	dashboardPath  = "/dashboard"
	eventQueueSize = 64
	retainFinished = 30 * time.Minute
)

type Options struct {
	// AssistantID is the voice agent used for mock interviews.
	AssistantID string
	// WorkflowID is the voice agent workflow that gathers interview details.
	WorkflowID string
}

type Spec struct {
	Mode        Mode   `json:"mode"`
	InterviewID string `json:"interviewId,omitempty"`
	FeedbackID  string `json:"feedbackId,omitempty"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName,omitempty"`
}

type run struct {
	spec      Spec
	cfg       StartConfig
	machine   *Machine
	transport Transport
	events    chan Event
	stop      chan struct{}
	once      sync.Once

	mu         sync.Mutex
	evaluating bool
	outcome    *Outcome
	finishedAt time.Time
}

// Controller owns every live session: it starts transports, feeds their
// events through a Machine, and runs the finish action for the mode.
type Controller struct {
	opts       Options
	factory    TransportFactory
	evaluator  Evaluator
	interviews InterviewSource
	guard      *feedback.Guard
	pub        Publisher
	now        func() time.Time
	newID      func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*run
}

func NewController(opts Options, factory TransportFactory, evaluator Evaluator, interviews InterviewSource, guard *feedback.Guard, pub Publisher) *Controller {
	if guard == nil {
		guard = feedback.NewGuard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		opts:       opts,
		factory:    factory,
		evaluator:  evaluator,
		interviews: interviews,
		guard:      guard,
		pub:        pub,
		now:        time.Now,
		newID:      uuid.NewString,
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[string]*run),
	}
}

// Start creates a session and asks its transport to begin the call.
func (c *Controller) Start(ctx context.Context, spec Spec) (Snapshot, error) {
	if !spec.Mode.Valid() {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownMode, spec.Mode)
	}
	if strings.TrimSpace(spec.UserID) == "" {
		return Snapshot{}, ErrMissingUser
	}

	cfg, err := c.startConfig(ctx, spec)
	if err != nil {
		return Snapshot{}, err
	}

	id := c.newID()
	transport, err := c.factory(id, spec.UserID, spec.Mode)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create transport: %w", err)
	}

	r := &run{
		spec:      spec,
		cfg:       cfg,
		machine:   NewMachine(id, spec.Mode, spec.InterviewID),
		transport: transport,
		events:    make(chan Event, eventQueueSize),
		stop:      make(chan struct{}),
	}
	if err := r.machine.Start(c.now()); err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	c.pruneLocked()
	c.sessions[id] = r
	c.mu.Unlock()

	c.publish(r, UpdateState)

	c.wg.Add(1)
	go c.consume(r)

	if err := transport.Start(c.ctx, cfg, r.events); err != nil {
		slog.Warn("session: transport start failed", "session_id", id, "error", err)
		r.machine.Fail(err)
		c.publish(r, UpdateState)
		c.finish(r)
		return c.snapshot(r), fmt.Errorf("start transport: %w", err)
	}

	return c.snapshot(r), nil
}

func (c *Controller) startConfig(ctx context.Context, spec Spec) (StartConfig, error) {
	switch spec.Mode {
	case ModeGenerate:
		return StartConfig{
			WorkflowID: c.opts.WorkflowID,
			VariableValues: map[string]string{
				"username": spec.UserName,
				"userid":   spec.UserID,
			},
		}, nil
	default:
		if strings.TrimSpace(spec.InterviewID) == "" || strings.TrimSpace(spec.UserID) == "" {
			return StartConfig{}, ErrMissingInterview
		}
		iv, err := c.interviews.GetInterview(ctx, spec.InterviewID)
		if err != nil {
			return StartConfig{}, fmt.Errorf("load interview: %w", err)
		}
		return StartConfig{
			AssistantID:    c.opts.AssistantID,
			VariableValues: map[string]string{"questions": transcript.Bullets(iv.Questions)},
		}, nil
	}
}

func (c *Controller) consume(r *run) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-r.stop:
			return
		case ev := <-r.events:
			if ev.Type == EventError {
				slog.Warn("session: transport error", "session_id", r.machine.id, "error", ev.Error)
			}
			update := r.machine.Apply(ev)
			if update == "" {
				continue
			}
			c.publish(r, update)
			if r.machine.State() == StateFinished {
				c.finish(r)
				return
			}
		}
	}
}

// Stop handles a user disconnect: the session finishes immediately even if
// transport events are still queued.
func (c *Controller) Stop(id, userID string) (Snapshot, error) {
	r, err := c.lookup(id, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if r.machine.Disconnect() {
		c.publish(r, UpdateState)
	}
	c.finish(r)
	return c.snapshot(r), nil
}

func (c *Controller) Get(id, userID string) (Snapshot, error) {
	r, err := c.lookup(id, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return c.snapshot(r), nil
}

// HandleFrame forwards browser input to the session's transport.
func (c *Controller) HandleFrame(id, userID string, binary bool, data []byte) error {
	r, err := c.lookup(id, userID)
	if err != nil {
		return err
	}
	h, ok := r.transport.(FrameHandler)
	if !ok {
		return ErrFramesUnsupported
	}
	return h.HandleFrame(binary, data)
}

// Close stops every transport and cancels outstanding evaluations.
func (c *Controller) Close() {
	c.mu.Lock()
	runs := make([]*run, 0, len(c.sessions))
	for _, r := range c.sessions {
		runs = append(runs, r)
	}
	c.mu.Unlock()

	for _, r := range runs {
		r.machine.Disconnect()
		r.once.Do(func() {
			close(r.stop)
			if err := r.transport.Stop(); err != nil {
				slog.Warn("session: transport stop failed", "session_id", r.machine.id, "error", err)
			}
		})
	}

	c.cancel()
	c.wg.Wait()
}

func (c *Controller) finish(r *run) {
	r.once.Do(func() {
		close(r.stop)
		if err := r.transport.Stop(); err != nil {
			slog.Warn("session: transport stop failed", "session_id", r.machine.id, "error", err)
		}

		r.mu.Lock()
		r.finishedAt = c.now()
		r.mu.Unlock()

		if r.spec.Mode == ModeGenerate {
			c.setOutcome(r, &Outcome{Redirect: dashboardPath})
			return
		}

		release, ok := c.guard.Acquire(r.spec.InterviewID)
		if !ok {
			c.setOutcome(r, &Outcome{Redirect: dashboardPath, Notice: "Feedback for this interview is already being generated"})
			return
		}

		r.mu.Lock()
		r.evaluating = true
		r.mu.Unlock()

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer release()
			c.evaluate(r)
		}()
	})
}

func (c *Controller) evaluate(r *run) {
	snap := r.machine.Snapshot()
	res, err := c.evaluator.Generate(c.ctx, feedback.Request{
		InterviewID: r.spec.InterviewID,
		UserID:      r.spec.UserID,
		Transcript:  snap.Transcript,
		FeedbackID:  r.spec.FeedbackID,
	})

	r.mu.Lock()
	r.evaluating = false
	r.mu.Unlock()

	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelInfo
		}
		slog.Log(c.ctx, level, "session: feedback generation failed",
			"session_id", snap.ID, "interview_id", r.spec.InterviewID, "kind", feedback.KindOf(err), "error", err)
		c.setOutcome(r, &Outcome{Redirect: dashboardPath, Notice: "Failed to generate feedback"})
		return
	}

	c.setOutcome(r, &Outcome{
		Redirect:   "/interview/" + r.spec.InterviewID + "/feedback",
		FeedbackID: res.FeedbackID,
	})
}

func (c *Controller) setOutcome(r *run, o *Outcome) {
	r.mu.Lock()
	r.outcome = o
	r.mu.Unlock()
	c.publish(r, UpdateOutcome)
}

func (c *Controller) publish(r *run, t UpdateType) {
	if c.pub == nil {
		return
	}
	c.pub.PublishSession(Update{Type: t, Session: c.snapshot(r)})
}

func (c *Controller) snapshot(r *run) Snapshot {
	snap := r.machine.Snapshot()
	r.mu.Lock()
	snap.Evaluating = r.evaluating
	snap.Outcome = r.outcome
	r.mu.Unlock()
	cfg := r.cfg
	snap.Config = &cfg
	snap.UserID = r.spec.UserID
	return snap
}

// lookup returns the session only to its owner. Other callers see it as
// missing.
func (c *Controller) lookup(id, userID string) (*run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.sessions[id]
	if !ok || r.spec.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return r, nil
}

func (c *Controller) pruneLocked() {
	cutoff := c.now().Add(-retainFinished)
	for id, r := range c.sessions {
		r.mu.Lock()
		expired := !r.finishedAt.IsZero() && !r.evaluating && r.finishedAt.Before(cutoff)
		r.mu.Unlock()
		if expired {
			delete(c.sessions, id)
		}
	}
}
