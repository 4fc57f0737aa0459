// Package httpapi exposes the room simulation over a small JSON HTTP
// surface: join/leave, movement, skill use, chat, cursored event polling
// and observation snapshots.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/registry"
	"tileworld.ai/internal/sim/eventlog"
	"tileworld.ai/internal/sim/room"
)

const (
	maxBodyBytes = 64 * 1024
	maxWaitMs    = 25000
)

type Server struct {
	reg *registry.Registry
	log *log.Logger
}

func NewServer(reg *registry.Registry, logger *log.Logger) *Server {
	return &Server{reg: reg, log: logger}
}

// Register installs the v1 routes on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/rooms", s.handleCreateRoom)
	mux.HandleFunc("POST /v1/rooms/{room}/join", s.handleJoin)
	mux.HandleFunc("POST /v1/rooms/{room}/actors/{actor}/leave", s.handleLeave)
	mux.HandleFunc("POST /v1/rooms/{room}/actors/{actor}/move", s.handleMove)
	mux.HandleFunc("POST /v1/rooms/{room}/actors/{actor}/interact", s.handleInteract)
	mux.HandleFunc("POST /v1/rooms/{room}/actors/{actor}/say", s.handleSay)
	mux.HandleFunc("GET /v1/rooms/{room}/events", s.handleEvents)
	mux.HandleFunc("GET /v1/rooms/{room}/actors/{actor}/observe", s.handleObserve)
}

// handleCreateRoom starts a room under a server-minted id, for clients
// that want a private room instead of naming one.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.reg.CreateRoom()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, protocol.ErrRoomNotReady, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, protocol.CreateRoomResult{
		RoomID: rm.ID(),
		Params: rm.WorldParams(),
	})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req protocol.JoinRequest
	if !s.decode(w, r, joinSchema, &req) {
		return
	}
	rm, err := s.reg.GetOrCreate(r.PathValue("room"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, protocol.ErrRoomNotReady, err.Error())
		return
	}
	res, err := rm.RequestJoin(r.Context(), req)
	if err != nil {
		s.writeReqError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	rm := s.room(w, r)
	if rm == nil {
		return
	}
	if err := rm.RequestLeave(r.Context(), r.PathValue("actor")); err != nil {
		s.writeReqError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": protocol.OutcomeOK})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req protocol.MoveRequest
	if !s.decode(w, r, moveSchema, &req) {
		return
	}
	rm := s.room(w, r)
	if rm == nil {
		return
	}
	res, err := rm.RequestMove(r.Context(), r.PathValue("actor"), req)
	if err != nil {
		s.writeReqError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	var req protocol.InteractRequest
	if !s.decode(w, r, interactSchema, &req) {
		return
	}
	rm := s.room(w, r)
	if rm == nil {
		return
	}
	res, err := rm.RequestInteract(r.Context(), r.PathValue("actor"), req)
	if err != nil {
		s.writeReqError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSay(w http.ResponseWriter, r *http.Request) {
	var req protocol.SayRequest
	if !s.decode(w, r, saySchema, &req) {
		return
	}
	rm := s.room(w, r)
	if rm == nil {
		return
	}
	res, err := rm.RequestSay(r.Context(), r.PathValue("actor"), req)
	if err != nil {
		s.writeReqError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleEvents serves the cursored log. With wait_ms it long-polls: the
// response returns as soon as events past the cursor exist, or empty at
// the deadline with the cursor unchanged.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rm := s.room(w, r)
	if rm == nil {
		return
	}
	q := r.URL.Query()
	cursor, err := parseUint(q.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "bad cursor")
		return
	}
	limit := eventlog.DefaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "bad limit")
			return
		}
		limit = n
	}
	waitMs := 0
	if v := q.Get("wait_ms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "bad wait_ms")
			return
		}
		if n > maxWaitMs {
			n = maxWaitMs
		}
		waitMs = n
	}

	var events []protocol.Envelope
	var next uint64
	if waitMs > 0 {
		events, next = rm.Log().WaitSince(r.Context(), cursor, limit, time.Duration(waitMs)*time.Millisecond)
	} else {
		events, next = rm.Log().Since(cursor, limit)
	}
	if events == nil {
		events = []protocol.Envelope{}
	}
	writeJSON(w, http.StatusOK, protocol.EventsResult{Events: events, NextCursor: next})
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	rm := s.room(w, r)
	if rm == nil {
		return
	}
	q := r.URL.Query()
	radius := 0.0
	if v := q.Get("radius"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "bad radius")
			return
		}
		radius = f
	}
	res, err := rm.RequestObserve(r.Context(), r.PathValue("actor"), radius, q.Get("detail"))
	if err != nil {
		s.writeReqError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) room(w http.ResponseWriter, r *http.Request) *room.Room {
	rm := s.reg.Get(r.PathValue("room"))
	if rm == nil {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, "unknown room")
		return nil
	}
	return rm
}

// decode reads, schema-checks and unmarshals a request body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "read body")
		return false
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "body too large")
		return false
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "malformed json")
		return false
	}
	if err := schema.Validate(raw); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "malformed json")
		return false
	}
	return true
}

func (s *Server) writeReqError(w http.ResponseWriter, err error) {
	var re *room.ReqError
	if errors.As(err, &re) {
		writeError(w, statusForCode(re.Code), re.Code, re.Message)
		return
	}
	s.log.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
}

func statusForCode(code string) int {
	switch code {
	case protocol.ErrBadRequest:
		return http.StatusBadRequest
	case protocol.ErrForbidden:
		return http.StatusForbidden
	case protocol.ErrNotFound, protocol.ErrNotInRoom:
		return http.StatusNotFound
	case protocol.ErrConflict:
		return http.StatusConflict
	case protocol.ErrRoomNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, protocol.ErrorBody{
		Code:      code,
		Message:   message,
		Retryable: protocol.Retryable(code),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseUint(v string) (uint64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}
