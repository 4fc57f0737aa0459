// Package registry owns the set of live rooms. Rooms are created on first
// use and each runs its own loop goroutine until the registry shuts down.
package registry

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/oklog/ulid/v2"

	"tileworld.ai/internal/sim/mapload"
	"tileworld.ai/internal/sim/room"
	"tileworld.ai/internal/sim/skills"
)

type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*room.Room
	cancel  map[string]context.CancelFunc
	closers map[string]io.Closer
	wg      sync.WaitGroup

	baseCfg  room.Config
	worldMap *mapload.Map
	catalog  *skills.Catalog
	metrics  *room.Metrics
	journals JournalFactory

	logger *log.Logger
	closed bool
}

// JournalFactory opens a per-room journal; nil disables journaling.
type JournalFactory func(roomID string) (room.Journal, error)

type Option func(*Registry)

func WithMetrics(m *room.Metrics) Option   { return func(r *Registry) { r.metrics = m } }
func WithJournals(f JournalFactory) Option { return func(r *Registry) { r.journals = f } }
func WithLogger(l *log.Logger) Option      { return func(r *Registry) { r.logger = l } }

func New(baseCfg room.Config, m *mapload.Map, catalog *skills.Catalog, opts ...Option) *Registry {
	r := &Registry{
		rooms:    map[string]*room.Room{},
		cancel:   map[string]context.CancelFunc{},
		closers:  map[string]io.Closer{},
		baseCfg:  baseCfg,
		worldMap: m,
		catalog:  catalog,
		logger:   log.New(logDiscard{}, "", 0),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type logDiscard struct{}

func (logDiscard) Write(p []byte) (int, error) { return len(p), nil }

// NewRoomID mints a fresh room id.
func NewRoomID() string {
	return "R" + ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// CreateRoom starts a room under a freshly minted id. Creation is
// serialized with GetOrCreate, so the id cannot collide with a named room
// racing in.
func (r *Registry) CreateRoom() (*room.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(NewRoomID())
}

// GetOrCreate returns the named room, starting it if needed.
func (r *Registry) GetOrCreate(roomID string) (*room.Room, error) {
	if roomID == "" {
		roomID = "default"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(roomID)
}

func (r *Registry) getOrCreateLocked(roomID string) (*room.Room, error) {
	if r.closed {
		return nil, fmt.Errorf("registry shut down")
	}
	if rm, ok := r.rooms[roomID]; ok {
		return rm, nil
	}

	cfg := r.baseCfg
	cfg.ID = roomID
	rm := room.New(cfg, r.worldMap, r.catalog)
	if r.metrics != nil {
		rm.SetMetrics(r.metrics.ForRoom(roomID))
	}
	if r.journals != nil {
		j, err := r.journals(roomID)
		if err != nil {
			return nil, fmt.Errorf("open journal for room %s: %w", roomID, err)
		}
		rm.SetJournal(j)
		if c, ok := j.(io.Closer); ok {
			r.closers[roomID] = c
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.rooms[roomID] = rm
	r.cancel[roomID] = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := rm.Run(ctx); err != nil && ctx.Err() == nil {
			r.logger.Printf("room %s loop exited: %v", roomID, err)
		}
	}()
	r.logger.Printf("room %s started", roomID)
	return rm, nil
}

// Get returns a running room or nil.
func (r *Registry) Get(roomID string) *room.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[roomID]
}

// RoomIDs lists live rooms.
func (r *Registry) RoomIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	return out
}

// Shutdown stops every room loop, waits for them to drain and closes the
// room journals. Journal close happens after the loops stop so no write
// races the close, and it is what finalizes the compressed segments.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, cancel := range r.cancel {
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID, c := range r.closers {
		if err := c.Close(); err != nil {
			r.logger.Printf("close journal for room %s: %v", roomID, err)
		}
		delete(r.closers, roomID)
	}
}
