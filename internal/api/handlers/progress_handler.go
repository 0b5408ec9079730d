package handlers

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/marketlens/backend/pkg/logger"
)

// ProgressHub fans pipeline stage notifications out to websocket subscribers
// keyed by request ID.
type ProgressHub struct {
	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]bool
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		subs: map[string]map[*websocket.Conn]bool{},
	}
}

func (h *ProgressHub) Publish(requestID, stage string) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.subs[requestID]))
	for conn := range h.subs[requestID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	msg := map[string]interface{}{
		"type":       "stage",
		"request_id": requestID,
		"stage":      stage,
	}
	for _, conn := range conns {
		if err := conn.WriteJSON(msg); err != nil {
			logger.Warn("Failed to push progress update",
				zap.String("request_id", requestID), zap.Error(err))
			h.unsubscribe(requestID, conn)
		}
	}
}

func (h *ProgressHub) HandleConnection(c *websocket.Conn) {
	requestID := c.Params("id")
	if requestID == "" {
		c.Close()
		return
	}

	logger.Info("Progress subscriber connected", zap.String("request_id", requestID))
	h.subscribe(requestID, c)

	defer func() {
		h.unsubscribe(requestID, c)
		c.Close()
		logger.Info("Progress subscriber disconnected", zap.String("request_id", requestID))
	}()

	// Hold the connection open; pushes come from Publish.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *ProgressHub) subscribe(requestID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[requestID] == nil {
		h.subs[requestID] = map[*websocket.Conn]bool{}
	}
	h.subs[requestID][c] = true
}

func (h *ProgressHub) unsubscribe(requestID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[requestID], c)
	if len(h.subs[requestID]) == 0 {
		delete(h.subs, requestID)
	}
}
