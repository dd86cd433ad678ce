package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ruteri/peer-name-service/events"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // read-only public stream
	},
}

// HandleEvents upgrades to a websocket and streams every registry event published after
// the connection was established, one events.Envelope per text message. Envelope.Seq is the
// broker sequence, so subscribers can detect dropped messages.
//
// URL format: GET /api/v1/events
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		http.Error(w, "event stream disabled", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	subscriber := uuid.NewString()
	log := h.log.With("subscriber", subscriber)
	log.Info("Event stream subscriber connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages := h.broker.Subscribe(ctx)

	// Drain control frames and notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Event stream subscriber disconnected")
			return
		case msg, ok := <-messages:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(streamWriteTimeout))
				return
			}
			env, err := events.Wrap(msg.Seq, msg.Event)
			if err != nil {
				log.Error("Failed to encode event", "err", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(env); err != nil {
				log.Warn("Event stream write failed", "err", err)
				return
			}
		}
	}
}
