package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/interview-coach/internal/transcript"
)

// Machine tracks one call. It is safe for concurrent use, but events must be
// applied from a single goroutine to preserve arrival order.
type Machine struct {
	mu          sync.Mutex
	id          string
	mode        Mode
	interviewID string
	state       State
	entries     []transcript.Entry
	lastMessage string
	speaking    bool
	lastErr     string
	startedAt   time.Time
}

func NewMachine(id string, mode Mode, interviewID string) *Machine {
	return &Machine{id: id, mode: mode, interviewID: interviewID, state: StateInactive}
}

// Start moves an inactive machine to connecting.
func (m *Machine) Start(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateInactive {
		return fmt.Errorf("start from %s: %w", m.state, ErrInvalidTransition)
	}
	m.state = StateConnecting
	m.startedAt = now
	return nil
}

// Apply folds ev into the machine and reports which update it produced, or
// "" if the event changed nothing.
func (m *Machine) Apply(ev Event) UpdateType {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateFinished || m.state == StateInactive {
		return ""
	}

	switch ev.Type {
	case EventCallStart:
		if m.state != StateConnecting {
			return ""
		}
		m.state = StateActive
		return UpdateState

	case EventCallEnd:
		m.finishLocked()
		return UpdateState

	case EventMessage:
		if m.state != StateActive || !isFinalTranscript(ev.Message) {
			return ""
		}
		content := strings.TrimSpace(ev.Message.Transcript)
		if content == "" || !ev.Message.Role.Valid() {
			return ""
		}
		m.entries = append(m.entries, transcript.Entry{Role: ev.Message.Role, Content: content})
		m.lastMessage = content
		return UpdateTranscript

	case EventSpeechStart, EventSpeechEnd:
		speaking := ev.Type == EventSpeechStart
		if m.speaking == speaking {
			return ""
		}
		m.speaking = speaking
		return UpdateSpeaking

	case EventError:
		m.lastErr = ev.Error
		if m.lastErr == "" {
			m.lastErr = "unknown transport error"
		}
		// A call that never came up cannot end on its own.
		if m.state == StateConnecting {
			m.finishLocked()
			return UpdateState
		}
		return UpdateError
	}
	return ""
}

// Disconnect finishes the call regardless of its state. It reports false if
// the machine had already finished.
func (m *Machine) Disconnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateFinished {
		return false
	}
	m.finishLocked()
	return true
}

// Fail records err and finishes the call.
func (m *Machine) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastErr = err.Error()
	m.finishLocked()
}

func (m *Machine) finishLocked() {
	m.state = StateFinished
	m.speaking = false
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]transcript.Entry, len(m.entries))
	copy(entries, m.entries)

	return Snapshot{
		ID:          m.id,
		Mode:        m.mode,
		State:       m.state,
		InterviewID: m.interviewID,
		Transcript:  entries,
		LastMessage: m.lastMessage,
		Speaking:    m.speaking,
		LastError:   m.lastErr,
		StartedAt:   m.startedAt,
	}
}

func isFinalTranscript(msg *Message) bool {
	return msg != nil && msg.Type == MessageTypeTranscript && msg.TranscriptType == TranscriptFinal
}
