package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/cryptosim/internal/broadcast"
)

// StreamHandler upgrades viewers to WebSocket and registers them with the hub.
type StreamHandler struct {
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewStreamHandler creates a new StreamHandler. Any origin may connect.
func NewStreamHandler(hub *broadcast.Hub, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Prices handles GET /ws/prices. It blocks until the viewer disconnects.
func (h *StreamHandler) Prices(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	viewer := broadcast.NewViewer(conn)
	unregister := h.hub.Register(viewer)
	defer unregister()

	h.logger.Info("viewer connected", slog.String("viewer", viewer.Name()))
	viewer.Wait()
	h.logger.Info("viewer disconnected", slog.String("viewer", viewer.Name()))
}
