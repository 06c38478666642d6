package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/interview-coach/internal/session"
	"github.com/sjawhar/interview-coach/internal/storage"
)

// allTopics subscribes to every event the hub publishes for a user.
const allTopics = ""

type subscription struct {
	userID string
	topic  string
}

// Hub fans events out to websocket clients. Every subscription belongs to a
// user and never sees another user's events.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]subscription
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]subscription)}
}

// Subscribe returns a channel receiving userID's events for topic, which is a
// session id or allTopics.
func (h *Hub) Subscribe(userID, topic string) chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = subscription{userID: userID, topic: topic}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// Broadcast delivers msg to userID's subscribers of topic and of allTopics.
// Events without an owner go nowhere. Slow subscribers miss messages rather
// than blocking publishers.
func (h *Hub) Broadcast(userID, topic string, msg []byte) {
	if userID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch, sub := range h.clients {
		if sub.userID != userID {
			continue
		}
		if sub.topic != allTopics && sub.topic != topic {
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) PublishSession(u session.Update) {
	now := time.Now().UTC()
	if u.Type == session.UpdateCommand && u.Command != nil {
		h.broadcastEvent(u.Session.UserID, u.Session.ID, CommandEvent{
			Event:     newEvent(sessionEventType(u.Type), now),
			SessionID: u.Session.ID,
			Command:   *u.Command,
		})
		return
	}
	h.broadcastEvent(u.Session.UserID, u.Session.ID, SessionEvent{
		Event:     newEvent(sessionEventType(u.Type), now),
		SessionID: u.Session.ID,
		Session:   u.Session,
	})
}

// Notify announces stored feedback to the owner's dashboard subscribers.
func (h *Hub) Notify(_ context.Context, fb storage.Feedback) error {
	h.broadcastEvent(fb.UserID, allTopics, FeedbackReadyEvent{
		Event:       newEvent("feedback_ready", time.Now().UTC()),
		InterviewID: fb.InterviewID,
		FeedbackID:  fb.ID,
		UserID:      fb.UserID,
		TotalScore:  fb.TotalScore,
	})
	return nil
}

func (h *Hub) broadcastEvent(userID, topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("hub: event marshal failed", "error", err)
		return
	}
	h.Broadcast(userID, topic, payload)
}
