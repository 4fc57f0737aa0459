// Package ws streams a room's event log to watchers over a websocket.
// Watchers are read-only: they never enter the room or consume an actor
// slot.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/registry"
	"tileworld.ai/internal/sim/eventlog"
)

const (
	subscribeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readIdleTimeout  = 60 * time.Second
	pollWindow       = 20 * time.Second
)

type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Cursor          uint64 `json:"cursor"`
}

type WelcomeMsg struct {
	Type            string               `json:"type"`
	ProtocolVersion string               `json:"protocol_version"`
	RoomID          string               `json:"room_id"`
	Tick            uint64               `json:"tick"`
	Cursor          uint64               `json:"cursor"`
	WorldParams     protocol.WorldParams `json:"world_params"`
}

type EventMsg struct {
	Type  string            `json:"type"`
	Event protocol.Envelope `json:"event"`
}

type Server struct {
	reg *registry.Registry
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(reg *registry.Registry, logger *log.Logger) *Server {
	return &Server{
		reg: reg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// WatchHandler serves GET /v1/rooms/{room}/watch. The client must send
// SUBSCRIBE first; the server replies WELCOME and then streams every
// event past the subscribed cursor.
func (s *Server) WatchHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rm := s.reg.Get(r.PathValue("room"))
		if rm == nil {
			http.Error(rw, "unknown room", http.StatusNotFound)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(subscribeTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != protocol.Version {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"),
				time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("W%d", s.nextID.Add(1))
		welcome := WelcomeMsg{
			Type:            "WELCOME",
			ProtocolVersion: protocol.Version,
			RoomID:          rm.ID(),
			Tick:            rm.CurrentTick(),
			Cursor:          sub.Cursor,
			WorldParams:     rm.WorldParams(),
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(welcome); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reader: only close frames and pings are expected.
		go func() {
			defer cancel()
			for {
				_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		cursor := sub.Cursor
		for {
			events, next := rm.Log().WaitSince(ctx, cursor, eventlog.MaxLimit, pollWindow)
			if ctx.Err() != nil {
				return
			}
			for _, env := range events {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(EventMsg{Type: "EVENT", Event: env}); err != nil {
					s.log.Printf("watcher %s dropped: %v", sid, err)
					return
				}
			}
			if len(events) == 0 {
				// Keepalive across idle windows.
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return
				}
			}
			cursor = next
		}
	}
}
