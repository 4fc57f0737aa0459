// Package eventlog is the append-only, cursor-addressed room event log.
// Appends come from the room loop only; reads may come from any goroutine
// (long-poll handlers), so the log carries its own lock. Waiters are woken
// by a notification channel that is closed and replaced on every append,
// not by interval polling.
package eventlog

import (
	"context"
	"sync"
	"time"

	"tileworld.ai/internal/protocol"
)

const (
	DefaultMaxCount = 4096
	DefaultMaxAge   = 10 * time.Minute
	DefaultLimit    = 100
	MaxLimit        = 1000
)

type Log struct {
	roomID   string
	maxCount int
	maxAge   time.Duration

	mu      sync.Mutex
	entries []protocol.Envelope
	next    uint64 // next cursor to assign; cursors start at 1
	notify  chan struct{}
}

func New(roomID string, maxCount int, maxAge time.Duration) *Log {
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Log{
		roomID:   roomID,
		maxCount: maxCount,
		maxAge:   maxAge,
		notify:   make(chan struct{}),
	}
}

// Append assigns the next cursor, stores the envelope and wakes waiters.
// Cursors are strictly increasing and never reused for the room's lifetime.
func (l *Log) Append(eventType string, tick uint64, now time.Time, payload protocol.Payload) protocol.Envelope {
	l.mu.Lock()
	l.next++
	env := protocol.Envelope{
		Cursor:  l.next,
		Type:    eventType,
		RoomID:  l.roomID,
		Tick:    tick,
		TS:      now.UnixMilli(),
		Payload: payload,
	}
	l.entries = append(l.entries, env)
	l.evictLocked(now)

	wake := l.notify
	l.notify = make(chan struct{})
	l.mu.Unlock()

	close(wake)
	return env
}

// Since returns up to limit envelopes with cursor > since. Cursors that
// point before the oldest retained entry are not an error; callers get
// whatever remains. nextCursor is the cursor of the last envelope returned,
// or since unchanged when nothing matched.
func (l *Log) Since(since uint64, limit int) ([]protocol.Envelope, uint64) {
	limit = clampLimit(limit)
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]protocol.Envelope, 0, limit)
	next := since
	for _, e := range l.entries {
		if e.Cursor <= since {
			continue
		}
		out = append(out, e)
		next = e.Cursor
		if len(out) >= limit {
			break
		}
	}
	return out, next
}

// WaitSince blocks until at least one envelope past the cursor exists, the
// wait budget elapses or ctx is cancelled. Timeout is not a failure: it
// returns an empty slice with the unchanged cursor.
func (l *Log) WaitSince(ctx context.Context, since uint64, limit int, maxWait time.Duration) ([]protocol.Envelope, uint64) {
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	for {
		l.mu.Lock()
		wake := l.notify
		l.mu.Unlock()

		out, next := l.Since(since, limit)
		if len(out) > 0 {
			return out, next
		}
		select {
		case <-wake:
		case <-deadline.C:
			return nil, since
		case <-ctx.Done():
			return nil, since
		}
	}
}

// Latest returns the most recently assigned cursor, 0 before any append.
func (l *Log) Latest() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// OldestCursor is 0 while the log is empty.
func (l *Log) OldestCursor() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[0].Cursor
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) evictLocked(now time.Time) {
	cutoff := now.Add(-l.maxAge).UnixMilli()
	drop := 0
	for drop < len(l.entries) && l.entries[drop].TS < cutoff {
		drop++
	}
	if over := len(l.entries) - drop - l.maxCount; over > 0 {
		drop += over
	}
	if drop > 0 {
		l.entries = append([]protocol.Envelope(nil), l.entries[drop:]...)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
