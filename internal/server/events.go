package server

import (
	"time"

	"github.com/sjawhar/interview-coach/internal/session"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

// SessionEvent carries the session snapshot after a change.
type SessionEvent struct {
	Event
	SessionID string           `json:"session_id"`
	Session   session.Snapshot `json:"session"`
}

// CommandEvent tells a relaying browser to start or stop its voice agent.
type CommandEvent struct {
	Event
	SessionID string          `json:"session_id"`
	Command   session.Command `json:"command"`
}

type FeedbackReadyEvent struct {
	Event
	InterviewID string `json:"interview_id"`
	FeedbackID  string `json:"feedback_id"`
	UserID      string `json:"user_id"`
	TotalScore  int    `json:"total_score"`
}

type FrameErrorEvent struct {
	Event
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

func sessionEventType(t session.UpdateType) string {
	switch t {
	case session.UpdateState:
		return "session_state"
	case session.UpdateTranscript:
		return "session_transcript"
	case session.UpdateSpeaking:
		return "session_speaking"
	case session.UpdateError:
		return "session_error"
	case session.UpdateOutcome:
		return "session_outcome"
	case session.UpdateCommand:
		return "session_command"
	default:
		return "session_" + string(t)
	}
}
