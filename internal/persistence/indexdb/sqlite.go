// Package indexdb maintains a queryable sqlite read-model of the room
// event streams. It is strictly secondary: writes are buffered and
// dropped under pressure, the journal remains the source of truth.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"tileworld.ai/internal/protocol"
)

type Index struct {
	db *sql.DB

	ch   chan msg
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type msg struct {
	env  protocol.Envelope
	done chan struct{} // flush marker when non-nil
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	idx := &Index{
		db: db,
		// High buffer: proximity sweeps can burst many events per tick.
		ch: make(chan msg, 65536),
	}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		idx.loop()
	}()
	return idx, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only write pattern; NORMAL durability is
	// enough for a rebuildable index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			room_id TEXT NOT NULL,
			cursor INTEGER NOT NULL,
			type TEXT NOT NULL,
			tick INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			entity_id TEXT,
			payload_json TEXT NOT NULL,
			PRIMARY KEY (room_id, cursor)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(room_id, type, cursor);`,
		`CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_id, room_id, cursor);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Index) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteEvent implements room.Journal. Non-blocking: events are dropped
// when the writer falls behind.
func (s *Index) WriteEvent(env protocol.Envelope) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- msg{env: env}:
	default:
	}
	return nil
}

func (s *Index) loop() {
	for m := range s.ch {
		if m.done != nil {
			close(m.done)
			continue
		}
		s.insert(m.env)
	}
}

func (s *Index) insert(env protocol.Envelope) {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return
	}
	entity, _ := env.Payload["entity_id"].(string)
	_, _ = s.db.Exec(
		`INSERT OR REPLACE INTO events (room_id, cursor, type, tick, ts, entity_id, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		env.RoomID, env.Cursor, env.Type, env.Tick, env.TS, entity, string(payload),
	)
}

// Flush blocks until every write enqueued before the call is applied.
func (s *Index) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- msg{done: done}
	<-done
}

// EventsByType returns stored events of one type for a room, cursor order.
func (s *Index) EventsByType(roomID, eventType string, limit int) ([]protocol.Envelope, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT cursor, type, tick, ts, payload_json FROM events
		 WHERE room_id = ? AND type = ? ORDER BY cursor LIMIT ?`,
		roomID, eventType, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows, roomID)
}

// EventsByEntity returns stored events naming the entity, cursor order.
func (s *Index) EventsByEntity(roomID, entityID string, limit int) ([]protocol.Envelope, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT cursor, type, tick, ts, payload_json FROM events
		 WHERE room_id = ? AND entity_id = ? ORDER BY cursor LIMIT ?`,
		roomID, entityID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows, roomID)
}

// CountByType aggregates stored event counts per type for a room.
func (s *Index) CountByType(roomID string) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT type, COUNT(*) FROM events WHERE room_id = ? GROUP BY type`, roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}

func scanEvents(rows *sql.Rows, roomID string) ([]protocol.Envelope, error) {
	var out []protocol.Envelope
	for rows.Next() {
		var env protocol.Envelope
		var payload string
		if err := rows.Scan(&env.Cursor, &env.Type, &env.Tick, &env.TS, &payload); err != nil {
			return nil, err
		}
		env.RoomID = roomID
		if err := json.Unmarshal([]byte(payload), &env.Payload); err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, rows.Err()
}
