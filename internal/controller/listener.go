package controller

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/townsquare/server/internal/town"
)

// Output is the wire shape of an event pushed to a client.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// wsListener forwards town events to one websocket connection. Notify is
// called synchronously from controller operations, so it only serializes and
// queues the write; it never calls back into the town.
type wsListener struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu sync.Mutex
}

func newWSListener(conn *websocket.Conn, logger *slog.Logger) *wsListener {
	return &wsListener{conn: conn, logger: logger}
}

func (l *wsListener) Notify(ev town.Event) {
	out := Output{Type: string(ev.Type)}
	switch {
	case ev.Participant != nil:
		out.Payload = ev.Participant
	case ev.Area != nil:
		out.Payload = ev.Area
	case ev.Message != nil:
		out.Payload = ev.Message
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.conn.WriteJSON(out); err != nil {
		l.logger.Debug("failed to push event", "event", string(ev.Type), "error", err)
	}

	if ev.Type == town.EventTownDestroyed {
		l.conn.Close()
	}
}

// writeError reports a failed client message over the same locked writer the
// event pushes use.
func (l *wsListener) writeError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if werr := l.conn.WriteJSON(Output{Type: "error", Payload: err.Error()}); werr != nil {
		l.logger.Debug("failed to push error", "error", werr)
	}
}
