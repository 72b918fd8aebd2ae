package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tradewatch/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongDelay = 90 * time.Second
	// Send pings to peer with this period. Must be less than pongDelay.
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard may be served from another origin than the API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebsocket streams change events to one connected client. Each
// connection holds its own hub subscription; teardown on any exit path
// cancels it.
func (h *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorWithErr(ctx, "Websocket upgrade failed", err)
		return
	}
	defer socket.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	logger.Info(ctx, "Websocket subscriber connected", "remote", socket.RemoteAddr().String())

	// Ping/pong keepalive so the server notices when the client goes
	// away without a close frame.
	socket.SetReadDeadline(time.Now().Add(pongDelay))
	socket.SetPongHandler(func(string) error {
		socket.SetReadDeadline(time.Now().Add(pongDelay))
		return nil
	})

	// The read pump only drains control frames and detects closure.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := socket.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			logger.Info(ctx, "Websocket subscriber disconnected", "remote", socket.RemoteAddr().String())
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := socket.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// Expected when the other end goes away; the defers
				// close the socket and drop the subscription.
				logger.Debug(ctx, "Failed to write ping", "error", err)
				return
			}
		case ev, ok := <-events:
			if !ok {
				// Hub closed: server shutting down.
				deadline := time.Now().Add(writeWait)
				socket.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), deadline)
				return
			}
			socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := socket.WriteJSON(ev); err != nil {
				logger.Debug(ctx, "Failed to write event", "error", err)
				return
			}
		}
	}
}
