package server

import (
	"context"
	"log/slog"
	"sync"

	"ordertrack-backend/services/tracker"

	"github.com/gorilla/websocket"
)

// inbound messages from the browser companion
type pageMessage struct {
	Type string `json:"type"`
	Html string `json:"html"`
}

// outbound banner messages rendered by the companion on the page
type notificationMessage struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Session is one connected page. It doubles as the notification
// presenter for the tracking session: delivery outcomes travel back
// over the same socket the snapshots came in on.
type Session struct {
	conn *websocket.Conn

	// gorilla permits a single concurrent writer only
	writeMu sync.Mutex
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{conn: conn}
}

func (s *Session) Notify(ctx context.Context, level tracker.NotifyLevel, message string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.conn.WriteJSON(notificationMessage{
		Type:    "notification",
		Level:   string(level),
		Message: message,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to push notification to page", "err", err)
	}
}
