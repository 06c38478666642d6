package session

import (
	"context"
	"time"

	"github.com/sjawhar/interview-coach/internal/feedback"
	"github.com/sjawhar/interview-coach/internal/storage"
	"github.com/sjawhar/interview-coach/internal/transcript"
)

type State string

const (
	StateInactive   State = "inactive"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateFinished   State = "finished"
)

type Mode string

const (
	// ModeGenerate runs the question-gathering workflow; no evaluation follows.
	ModeGenerate Mode = "generate"
	// ModeInterview runs a mock interview and evaluates the transcript.
	ModeInterview Mode = "interview"
)

func (m Mode) Valid() bool {
	return m == ModeGenerate || m == ModeInterview
}

type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventMessage     EventType = "message"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
	EventError       EventType = "error"
)

const (
	MessageTypeTranscript = "transcript"
	TranscriptFinal       = "final"
	TranscriptPartial     = "partial"
)

// Event is one notification from a voice channel.
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type Message struct {
	Type           string          `json:"type"`
	TranscriptType string          `json:"transcriptType,omitempty"`
	Role           transcript.Role `json:"role,omitempty"`
	Transcript     string          `json:"transcript,omitempty"`
}

// StartConfig selects what the voice agent runs. Exactly one of AssistantID
// or WorkflowID is set.
type StartConfig struct {
	AssistantID    string            `json:"assistantId,omitempty"`
	WorkflowID     string            `json:"workflowId,omitempty"`
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

// Transport is a voice channel. Start delivers events on the given channel
// until Stop is called; it never closes the channel.
type Transport interface {
	Start(ctx context.Context, cfg StartConfig, events chan<- Event) error
	Stop() error
}

// FrameHandler is implemented by transports fed from the browser connection.
type FrameHandler interface {
	HandleFrame(binary bool, data []byte) error
}

// TransportFactory builds the transport for a new session owned by userID.
type TransportFactory func(sessionID, userID string, mode Mode) (Transport, error)

type UpdateType string

const (
	UpdateState      UpdateType = "state"
	UpdateTranscript UpdateType = "transcript"
	UpdateSpeaking   UpdateType = "speaking"
	UpdateError      UpdateType = "error"
	UpdateOutcome    UpdateType = "outcome"
	UpdateCommand    UpdateType = "command"
)

type Command struct {
	Action string       `json:"action"`
	Config *StartConfig `json:"config,omitempty"`
}

type Update struct {
	Type    UpdateType
	Session Snapshot
	Command *Command
}

type Publisher interface {
	PublishSession(u Update)
}

type Evaluator interface {
	Generate(ctx context.Context, req feedback.Request) (feedback.Result, error)
}

type InterviewSource interface {
	GetInterview(ctx context.Context, id string) (storage.Interview, error)
}

// Outcome is where the UI should go once a session has finished.
type Outcome struct {
	Redirect   string `json:"redirect"`
	FeedbackID string `json:"feedbackId,omitempty"`
	Notice     string `json:"notice,omitempty"`
}

type Snapshot struct {
	ID          string             `json:"id"`
	Mode        Mode               `json:"mode"`
	UserID      string             `json:"userId,omitempty"`
	State       State              `json:"state"`
	InterviewID string             `json:"interviewId,omitempty"`
	Transcript  []transcript.Entry `json:"transcript"`
	LastMessage string             `json:"lastMessage,omitempty"`
	Speaking    bool               `json:"speaking"`
	LastError   string             `json:"lastError,omitempty"`
	Evaluating  bool               `json:"evaluating"`
	Outcome     *Outcome           `json:"outcome,omitempty"`
	Config      *StartConfig       `json:"config,omitempty"`
	StartedAt   time.Time          `json:"startedAt"`
}
