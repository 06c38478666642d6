package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/interview-coach/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoutes(mux *http.ServeMux, hub *Hub, sessions SessionController) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		writeEvent(conn, ConnectionEvent{
			Event:     newEvent("connection", time.Now().UTC()),
			Connected: true,
		})

		ch := hub.Subscribe(userID, allTopics)
		defer hub.Unsubscribe(ch)

		done := drain(conn)
		pump(conn, ch, done)
	})

	mux.HandleFunc("GET /ws/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "sessions unavailable")
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		sessionID := r.PathValue("id")
		snap, err := sessions.Get(sessionID, userID)
		if err != nil {
			writeSessionLookupError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		// Subscribe before sending the snapshot so no update falls in between.
		ch := hub.Subscribe(userID, sessionID)
		defer hub.Unsubscribe(ch)

		now := time.Now().UTC()
		writeEvent(conn, ConnectionEvent{Event: newEvent("connection", now), Connected: true})
		writeEvent(conn, SessionEvent{
			Event:     newEvent(sessionEventType(session.UpdateState), now),
			SessionID: sessionID,
			Session:   snap,
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				msgType, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				binary := msgType == websocket.BinaryMessage
				if err := sessions.HandleFrame(sessionID, userID, binary, data); err != nil {
					if errors.Is(err, session.ErrSessionNotFound) {
						return
					}
					hub.broadcastEvent(userID, sessionID, FrameErrorEvent{
						Event:     newEvent("frame_error", time.Now().UTC()),
						SessionID: sessionID,
						Error:     err.Error(),
					})
				}
			}
		}()

		pump(conn, ch, done)
	})
}

// drain discards inbound messages so control frames are processed, and
// closes the returned channel once the peer goes away.
func drain(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

func pump(conn *websocket.Conn, ch <-chan []byte, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, event any) {
	payload, err := json.Marshal(event)
	if err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
}
