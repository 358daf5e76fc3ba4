package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"live-quiz-service/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Subscriber hands out per-topic event streams; memory.Broadcaster
// satisfies it.
type Subscriber interface {
	Subscribe(topic string) (<-chan []byte, func())
}

type subscribedMessage struct {
	Event string `json:"event"`
	Topic string `json:"topic"`
}

// ServeEvents upgrades to a websocket and streams every event published on
// the room topic. Closing the socket unsubscribes.
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.GetRoomByID(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("ws upgrade failed", "room_id", room.ID, "error", err)
		return
	}
	defer conn.Close()

	topic := domain.RoomTopic(room.ID)
	updates, cancel := h.events.Subscribe(topic)
	defer cancel()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribedMessage{Event: "subscribed", Topic: topic}); err != nil {
		return
	}
	h.logger.Debugw("event stream opened", "room_id", room.ID)

	// Inbound frames are discarded; reading is what surfaces close frames.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case payload, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debugw("ws write error", "room_id", room.ID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-readerDone:
			h.logger.Debugw("event stream closed", "room_id", room.ID)
			return
		}
	}
}
