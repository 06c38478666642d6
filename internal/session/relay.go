package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// RelayTransport drives a voice agent that runs in the browser. Start and
// Stop are published to the browser as commands, and the browser relays the
// agent's events back as JSON text frames.
type RelayTransport struct {
	sessionID string
	userID    string
	pub       Publisher

	mu      sync.Mutex
	events  chan<- Event
	done    chan struct{}
	stopped bool
}

func NewRelayTransport(sessionID, userID string, pub Publisher) *RelayTransport {
	return &RelayTransport{sessionID: sessionID, userID: userID, pub: pub, done: make(chan struct{})}
}

func (t *RelayTransport) Start(_ context.Context, cfg StartConfig, events chan<- Event) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrTransportStopped
	}
	t.events = events
	t.mu.Unlock()

	t.send(Command{Action: "start", Config: &cfg})
	return nil
}

func (t *RelayTransport) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	close(t.done)
	t.mu.Unlock()

	t.send(Command{Action: "stop"})
	return nil
}

// relayFrame is the browser's copy of a voice agent SDK event. Errors arrive
// either as a string or as an SDK error object.
type relayFrame struct {
	Type    EventType       `json:"type"`
	Message *Message        `json:"message,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

func (t *RelayTransport) HandleFrame(binary bool, data []byte) error {
	if binary {
		return errors.New("relay transport accepts text frames only")
	}

	var frame relayFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("decode relay frame: %w", err)
	}

	ev := Event{Type: frame.Type, Message: frame.Message}
	switch frame.Type {
	case EventCallStart, EventCallEnd, EventMessage, EventSpeechStart, EventSpeechEnd:
	case EventError:
		ev.Error = decodeRelayError(frame.Error)
	default:
		return fmt.Errorf("unknown relay event %q", frame.Type)
	}

	return t.push(ev)
}

func (t *RelayTransport) push(ev Event) error {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()

	if events == nil {
		return ErrTransportNotActive
	}
	select {
	case events <- ev:
		return nil
	case <-t.done:
		return ErrTransportStopped
	}
}

func (t *RelayTransport) send(cmd Command) {
	if t.pub == nil {
		return
	}
	t.pub.PublishSession(Update{Type: UpdateCommand, Session: Snapshot{ID: t.sessionID, UserID: t.userID}, Command: &cmd})
}

func decodeRelayError(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Message) != "" {
		return obj.Message
	}
	return string(raw)
}
