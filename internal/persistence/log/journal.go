// Package log persists room event streams as zstd-compressed JSONL,
// rotated hourly. Journals are write-behind: the room log is the source
// of truth for live polling, the journal is for replay and offline
// indexing.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"tileworld.ai/internal/protocol"
)

type jsonlWriter struct {
	dir    string
	prefix string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func (w *jsonlWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *jsonlWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *jsonlWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

// EventJournal appends room event envelopes under
// <dataDir>/rooms/<roomID>/events/.
type EventJournal struct{ w *jsonlWriter }

func NewEventJournal(dataDir, roomID string) *EventJournal {
	return &EventJournal{w: &jsonlWriter{
		dir:    filepath.Join(dataDir, "rooms", roomID, "events"),
		prefix: "events",
	}}
}

func (j *EventJournal) WriteEvent(env protocol.Envelope) error { return j.w.write(env) }
func (j *EventJournal) Close() error                           { return j.w.close() }

// ReadEvents decodes every journaled envelope for a room in file order.
// Segment files sort lexically by hour, so the stream comes back in
// append order.
func ReadEvents(dataDir, roomID string) ([]protocol.Envelope, error) {
	dir := filepath.Join(dataDir, "rooms", roomID, "events")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".zst" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []protocol.Envelope
	for _, name := range names {
		events, err := readSegment(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", name, err)
		}
		out = append(out, events...)
	}
	return out, nil
}

func readSegment(path string) ([]protocol.Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []protocol.Envelope
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := protocol.DecodeEnvelope(line)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}
