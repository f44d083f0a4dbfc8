package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/smart-office/internal/events"
	"github.com/oshokin/smart-office/internal/logger"
)

// handleWS upgrades the request and streams events until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ctx := s.context(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnKV(ctx, "Failed to establish a WS connection", "error", err)
		return
	}

	go s.processWSConnection(logger.WithKV(s.baseCtx, "remote", r.RemoteAddr), conn)
}

// processWSConnection sends the current status first, then every event from the feed.
func (s *Server) processWSConnection(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	stop := make(chan struct{})
	go readUntilClosed(conn, stop)

	id, updates := s.feed.Subscribe()
	defer s.feed.Unsubscribe(id)

	logger.DebugKV(ctx, "WS client connected", "subscription", id)

	status := s.service.Status(ctx)
	if err := writeEnvelope(conn, events.Envelope{Type: events.TypeState, At: time.Now(), Payload: status.State}); err != nil {
		return
	}

	for {
		select {
		case <-stop:
			logger.DebugKV(ctx, "WS client disconnected", "subscription", id)
			return
		case envelope, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))

				return
			}

			if err := writeEnvelope(conn, envelope); err != nil {
				logger.DebugKV(ctx, "WS write failed", "subscription", id, "error", err)
				return
			}
		}
	}
}

func writeEnvelope(conn *websocket.Conn, envelope events.Envelope) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return conn.WriteJSON(envelope)
}

// readUntilClosed drains client messages; the stream is push-only.
func readUntilClosed(conn *websocket.Conn, stop chan<- struct{}) {
	defer close(stop)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
