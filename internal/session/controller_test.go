package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/interview-coach/internal/feedback"
	"github.com/sjawhar/interview-coach/internal/storage"
	"github.com/sjawhar/interview-coach/internal/transcript"
)

type fakeTransport struct {
	mu       sync.Mutex
	cfg      StartConfig
	events   chan<- Event
	startErr error
	stops    int
}

func (f *fakeTransport) Start(_ context.Context, cfg StartConfig, events chan<- Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	f.events = events
	return f.startErr
}

func (f *fakeTransport) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeTransport) send(ev Event) {
	f.mu.Lock()
	events := f.events
	f.mu.Unlock()
	events <- ev
}

func (f *fakeTransport) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

type recordingPublisher struct {
	updates chan Update
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{updates: make(chan Update, 256)}
}

func (p *recordingPublisher) PublishSession(u Update) {
	p.updates <- u
}

func (p *recordingPublisher) waitFor(t *testing.T, typ UpdateType) Update {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u := <-p.updates:
			if u.Type == typ {
				return u
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s update", typ)
		}
	}
}

type fakeEvaluator struct {
	mu      sync.Mutex
	reqs    []feedback.Request
	err     error
	release chan struct{}
}

func (f *fakeEvaluator) Generate(ctx context.Context, req feedback.Request) (feedback.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return feedback.Result{}, ctx.Err()
		}
	}
	if f.err != nil {
		return feedback.Result{}, f.err
	}
	return feedback.Result{FeedbackID: "fb-1"}, nil
}

func (f *fakeEvaluator) requests() []feedback.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feedback.Request(nil), f.reqs...)
}

type fakeInterviews map[string]storage.Interview

func (f fakeInterviews) GetInterview(_ context.Context, id string) (storage.Interview, error) {
	iv, ok := f[id]
	if !ok {
		return storage.Interview{}, storage.ErrNotFound
	}
	return iv, nil
}

type controllerFixture struct {
	ctrl       *Controller
	transports []*fakeTransport
	pub        *recordingPublisher
	eval       *fakeEvaluator
	mu         sync.Mutex
}

func newControllerFixture(t *testing.T, eval *fakeEvaluator) *controllerFixture {
	t.Helper()

	f := &controllerFixture{pub: newRecordingPublisher(), eval: eval}
	interviews := fakeInterviews{
		"iv-1": {ID: "iv-1", UserID: "user-1", Questions: []string{"Tell me about yourself", "Why Go?"}},
	}
	factory := func(string, string, Mode) (Transport, error) {
		tr := &fakeTransport{}
		f.mu.Lock()
		f.transports = append(f.transports, tr)
		f.mu.Unlock()
		return tr, nil
	}

	f.ctrl = NewController(Options{AssistantID: "asst-1", WorkflowID: "wf-1"}, factory, eval, interviews, feedback.NewGuard(), f.pub)
	ids := 0
	f.ctrl.newID = func() string {
		ids++
		return fmt.Sprintf("s-%d", ids)
	}
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *controllerFixture) transport(i int) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transports[i]
}

func TestControllerInterviewEvaluatesTranscript(t *testing.T) {
	eval := &fakeEvaluator{}
	f := newControllerFixture(t, eval)

	snap, err := f.ctrl.Start(context.Background(), Spec{Mode: ModeInterview, InterviewID: "iv-1", UserID: "user-1", FeedbackID: "fb-old"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.State != StateConnecting {
		t.Fatalf("expected connecting, got %s", snap.State)
	}

	tr := f.transport(0)
	if tr.cfg.AssistantID != "asst-1" {
		t.Fatalf("expected assistant id, got %#v", tr.cfg)
	}
	if tr.cfg.VariableValues["questions"] != "- Tell me about yourself\n- Why Go?" {
		t.Fatalf("unexpected questions variable %q", tr.cfg.VariableValues["questions"])
	}

	tr.send(Event{Type: EventCallStart})
	tr.send(finalMessage(transcript.RoleAssistant, "Tell me about yourself"))
	tr.send(partialMessage(transcript.RoleUser, "I am"))
	tr.send(finalMessage(transcript.RoleUser, "I am a backend engineer"))
	tr.send(Event{Type: EventCallEnd})

	outcome := f.pub.waitFor(t, UpdateOutcome)
	if outcome.Session.Outcome == nil || outcome.Session.Outcome.Redirect != "/interview/iv-1/feedback" {
		t.Fatalf("unexpected outcome %#v", outcome.Session.Outcome)
	}
	if outcome.Session.Outcome.FeedbackID != "fb-1" {
		t.Fatalf("expected feedback id in outcome, got %#v", outcome.Session.Outcome)
	}

	reqs := eval.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(reqs))
	}
	if reqs[0].FeedbackID != "fb-old" || reqs[0].UserID != "user-1" {
		t.Fatalf("unexpected request %#v", reqs[0])
	}
	if len(reqs[0].Transcript) != 2 || reqs[0].Transcript[1].Content != "I am a backend engineer" {
		t.Fatalf("unexpected transcript %#v", reqs[0].Transcript)
	}
	if tr.stopCount() == 0 {
		t.Fatal("expected transport stopped after call end")
	}
}

func TestControllerGenerateRedirectsWithoutEvaluation(t *testing.T) {
	eval := &fakeEvaluator{}
	f := newControllerFixture(t, eval)

	if _, err := f.ctrl.Start(context.Background(), Spec{Mode: ModeGenerate, UserID: "user-1", UserName: "Ada"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	tr := f.transport(0)
	if tr.cfg.WorkflowID != "wf-1" || tr.cfg.VariableValues["username"] != "Ada" || tr.cfg.VariableValues["userid"] != "user-1" {
		t.Fatalf("unexpected start config %#v", tr.cfg)
	}

	tr.send(Event{Type: EventCallStart})
	tr.send(Event{Type: EventCallEnd})

	outcome := f.pub.waitFor(t, UpdateOutcome)
	if outcome.Session.Outcome.Redirect != "/dashboard" {
		t.Fatalf("expected dashboard redirect, got %#v", outcome.Session.Outcome)
	}
	if len(eval.requests()) != 0 {
		t.Fatal("expected no evaluation in generate mode")
	}
}

func TestControllerEvaluationFailureRedirectsToDashboard(t *testing.T) {
	eval := &fakeEvaluator{err: &feedback.Error{Kind: feedback.KindGeneration, Op: "generate feedback", Err: errors.New("timeout")}}
	f := newControllerFixture(t, eval)

	snap, err := f.ctrl.Start(context.Background(), Spec{Mode: ModeInterview, InterviewID: "iv-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.transport(0).send(Event{Type: EventCallStart})

	if _, err := f.ctrl.Stop(snap.ID, "user-1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	outcome := f.pub.waitFor(t, UpdateOutcome)
	if outcome.Session.Outcome.Redirect != "/dashboard" || outcome.Session.Outcome.Notice == "" {
		t.Fatalf("expected dashboard with notice, got %#v", outcome.Session.Outcome)
	}
}

func TestControllerStopFinishesImmediately(t *testing.T) {
	eval := &fakeEvaluator{release: make(chan struct{})}
	f := newControllerFixture(t, eval)

	snap, err := f.ctrl.Start(context.Background(), Spec{Mode: ModeInterview, InterviewID: "iv-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stopped, err := f.ctrl.Stop(snap.ID, "user-1")
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if stopped.State != StateFinished {
		t.Fatalf("expected finished after stop, got %s", stopped.State)
	}
	if f.transport(0).stopCount() != 1 {
		t.Fatalf("expected transport stopped once, got %d", f.transport(0).stopCount())
	}

	if _, err := f.ctrl.Stop(snap.ID, "user-1"); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if f.transport(0).stopCount() != 1 {
		t.Fatalf("expected idempotent stop, got %d", f.transport(0).stopCount())
	}
	close(eval.release)
	f.pub.waitFor(t, UpdateOutcome)
}

func TestControllerRejectsConcurrentEvaluation(t *testing.T) {
	eval := &fakeEvaluator{release: make(chan struct{})}
	f := newControllerFixture(t, eval)

	spec := Spec{Mode: ModeInterview, InterviewID: "iv-1", UserID: "user-1"}
	first, err := f.ctrl.Start(context.Background(), spec)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	second, err := f.ctrl.Start(context.Background(), spec)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := f.ctrl.Stop(first.ID, "user-1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if _, err := f.ctrl.Stop(second.ID, "user-1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	outcome := f.pub.waitFor(t, UpdateOutcome)
	if outcome.Session.ID != second.ID || outcome.Session.Outcome.Notice == "" {
		t.Fatalf("expected second session rejected with notice, got %#v", outcome.Session)
	}

	close(eval.release)
	f.pub.waitFor(t, UpdateOutcome)
	if got := len(eval.requests()); got != 1 {
		t.Fatalf("expected exactly one evaluation, got %d", got)
	}
}

func TestControllerStartErrors(t *testing.T) {
	f := newControllerFixture(t, &fakeEvaluator{})

	tests := []struct {
		name string
		spec Spec
		want error
	}{
		{name: "unknown mode", spec: Spec{Mode: "karaoke"}, want: ErrUnknownMode},
		{name: "missing user", spec: Spec{Mode: ModeGenerate}, want: ErrMissingUser},
		{name: "missing interview", spec: Spec{Mode: ModeInterview, UserID: "user-1"}, want: ErrMissingInterview},
		{name: "interview not stored", spec: Spec{Mode: ModeInterview, InterviewID: "nope", UserID: "user-1"}, want: storage.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.ctrl.Start(context.Background(), tt.spec); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestControllerTransportStartFailureFinishes(t *testing.T) {
	pub := newRecordingPublisher()
	tr := &fakeTransport{startErr: errors.New("no assistant")}
	ctrl := NewController(Options{}, func(string, string, Mode) (Transport, error) { return tr, nil }, &fakeEvaluator{}, fakeInterviews{}, nil, pub)
	t.Cleanup(ctrl.Close)

	snap, err := ctrl.Start(context.Background(), Spec{Mode: ModeGenerate, UserID: "user-1"})
	if err == nil {
		t.Fatal("expected start error")
	}
	if snap.State != StateFinished || snap.LastError == "" {
		t.Fatalf("expected finished with error, got %#v", snap)
	}
}

func TestControllerUnknownSession(t *testing.T) {
	f := newControllerFixture(t, &fakeEvaluator{})

	if _, err := f.ctrl.Get("missing", "user-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.ctrl.Stop("missing", "user-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := f.ctrl.HandleFrame("missing", "user-1", false, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestControllerHidesSessionsFromOtherUsers(t *testing.T) {
	f := newControllerFixture(t, &fakeEvaluator{})

	snap, err := f.ctrl.Start(context.Background(), Spec{Mode: ModeGenerate, UserID: "user-1"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.UserID != "user-1" {
		t.Fatalf("expected snapshot owner user-1, got %q", snap.UserID)
	}

	if _, err := f.ctrl.Get(snap.ID, "user-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get: expected ErrSessionNotFound, got %v", err)
	}
	if err := f.ctrl.HandleFrame(snap.ID, "user-2", false, []byte(`{}`)); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("HandleFrame: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.ctrl.Stop(snap.ID, "user-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Stop: expected ErrSessionNotFound, got %v", err)
	}

	got, err := f.ctrl.Get(snap.ID, "user-1")
	if err != nil {
		t.Fatalf("owner Get failed: %v", err)
	}
	if got.State == StateFinished {
		t.Fatal("another user's stop must not finish the session")
	}
}

func TestControllerHandleFrameUnsupported(t *testing.T) {
	f := newControllerFixture(t, &fakeEvaluator{})

	snap, err := f.ctrl.Start(context.Background(), Spec{Mode: ModeGenerate, UserID: "user-1"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.ctrl.HandleFrame(snap.ID, "user-1", false, []byte(`{}`)); !errors.Is(err, ErrFramesUnsupported) {
		t.Fatalf("expected ErrFramesUnsupported, got %v", err)
	}
}

func TestControllerCloseCancelsEvaluation(t *testing.T) {
	eval := &fakeEvaluator{release: make(chan struct{})}
	f := newControllerFixture(t, eval)

	snap, err := f.ctrl.Start(context.Background(), Spec{Mode: ModeInterview, InterviewID: "iv-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := f.ctrl.Stop(snap.ID, "user-1"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		f.ctrl.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Close to cancel the outstanding evaluation")
	}
}
