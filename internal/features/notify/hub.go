// Package notify pushes transient operation outcomes to connected
// clients over a websocket.
package notify

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Event is one broadcast frame.
type Event struct {
	Event    string `json:"event"`
	ReportID string `json:"reportId,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type Hub struct {
	log   *zap.Logger
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:   log,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Notify broadcasts one outcome to every connected client. Broken
// connections are dropped.
func (h *Hub) Notify(event, reportID, severity, message string) {
	frame, err := json.Marshal(Event{
		Event:    event,
		ReportID: reportID,
		Severity: severity,
		Message:  message,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.log.Debug("dropping websocket client", zap.Error(err))
			delete(h.conns, c)
		}
	}
}
