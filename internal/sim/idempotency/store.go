// Package idempotency guarantees at-most-once application of mutating
// requests under client retries. One Store belongs to one room and is only
// touched from the room loop goroutine, so it carries no lock.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Status int

const (
	// New: first sight of this request id; the caller executes and then Saves.
	New Status = iota
	// Replay: same id, same fingerprint; the stored result is returned and
	// no side effect is re-applied.
	Replay
	// Conflict: same id, different fingerprint; the request is rejected.
	Conflict
)

const DefaultTTL = 30 * time.Minute

type key struct {
	Actor     string
	RequestID string
}

type record struct {
	Fingerprint string
	Result      any
	ExpiresAt   time.Time
}

type Store struct {
	ttl     time.Duration
	records map[key]record
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, records: map[key]record{}}
}

// Check classifies a request. An empty request id disables idempotency for
// that request and always reads as New.
func (s *Store) Check(actor, requestID string, body []byte, now time.Time) (Status, any) {
	if requestID == "" {
		return New, nil
	}
	s.sweep(now)
	rec, ok := s.records[key{Actor: actor, RequestID: requestID}]
	if !ok || now.After(rec.ExpiresAt) {
		return New, nil
	}
	if rec.Fingerprint != Fingerprint(body) {
		return Conflict, nil
	}
	return Replay, rec.Result
}

// Save records the produced result for future replays. Called only after
// the request was actually applied.
func (s *Store) Save(actor, requestID string, body []byte, result any, now time.Time) {
	if requestID == "" {
		return
	}
	s.records[key{Actor: actor, RequestID: requestID}] = record{
		Fingerprint: Fingerprint(body),
		Result:      result,
		ExpiresAt:   now.Add(s.ttl),
	}
}

func (s *Store) Len() int { return len(s.records) }

// Opportunistic cleanup.
func (s *Store) sweep(now time.Time) {
	for k, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, k)
		}
	}
}

func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
