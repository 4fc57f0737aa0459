package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tileworld.ai/internal/protocol"
)

func TestAppendAssignsMonotonicCursors(t *testing.T) {
	l := New("r1", 0, 0)
	now := time.Now()
	var last uint64
	for i := 0; i < 10; i++ {
		env := l.Append(protocol.EventChatMessage, uint64(i), now, protocol.Payload{"i": i})
		require.Greater(t, env.Cursor, last)
		require.Equal(t, "r1", env.RoomID)
		last = env.Cursor
	}
}

func TestSinceNeverReturnsAtOrBeforeCursor(t *testing.T) {
	l := New("r1", 0, 0)
	now := time.Now()
	for i := 0; i < 5; i++ {
		l.Append(protocol.EventChatMessage, 0, now, nil)
	}
	events, next := l.Since(2, 0)
	require.Len(t, events, 3)
	for _, e := range events {
		require.Greater(t, e.Cursor, uint64(2))
	}
	require.Equal(t, uint64(5), next)

	// Unchanged cursor, no new appends: empty result, cursor untouched.
	events, next = l.Since(5, 0)
	require.Empty(t, events)
	require.Equal(t, uint64(5), next)
}

func TestSinceLimit(t *testing.T) {
	l := New("r1", 0, 0)
	now := time.Now()
	for i := 0; i < 10; i++ {
		l.Append(protocol.EventChatMessage, 0, now, nil)
	}
	events, next := l.Since(0, 4)
	require.Len(t, events, 4)
	require.Equal(t, uint64(4), next)

	events, next = l.Since(next, 4)
	require.Len(t, events, 4)
	require.Equal(t, uint64(8), next)
}

func TestCountRetention(t *testing.T) {
	l := New("r1", 3, time.Hour)
	now := time.Now()
	for i := 0; i < 10; i++ {
		l.Append(protocol.EventChatMessage, 0, now, nil)
	}
	require.Equal(t, 3, l.Len())
	require.Equal(t, uint64(8), l.OldestCursor())

	// A cursor pointing before the oldest retained entry is tolerated.
	events, next := l.Since(1, 0)
	require.Len(t, events, 3)
	require.Equal(t, uint64(10), next)
}

func TestAgeRetention(t *testing.T) {
	l := New("r1", 100, time.Minute)
	old := time.Now().Add(-10 * time.Minute)
	l.Append(protocol.EventChatMessage, 0, old, nil)
	l.Append(protocol.EventChatMessage, 0, old, nil)
	// The fresh append evicts everything older than maxAge.
	l.Append(protocol.EventChatMessage, 0, time.Now(), nil)
	require.Equal(t, 1, l.Len())
	require.Equal(t, uint64(3), l.OldestCursor())
}

func TestWaitSinceWakesOnAppend(t *testing.T) {
	l := New("r1", 0, 0)
	done := make(chan uint64, 1)
	go func() {
		events, next := l.WaitSince(context.Background(), 0, 10, 5*time.Second)
		if len(events) == 1 {
			done <- next
		} else {
			done <- 0
		}
	}()

	time.Sleep(20 * time.Millisecond)
	l.Append(protocol.EventPresenceJoin, 1, time.Now(), nil)

	select {
	case next := <-done:
		require.Equal(t, uint64(1), next)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by append")
	}
}

func TestWaitSinceTimeoutReturnsUnchangedCursor(t *testing.T) {
	l := New("r1", 0, 0)
	l.Append(protocol.EventChatMessage, 0, time.Now(), nil)

	start := time.Now()
	events, next := l.WaitSince(context.Background(), 1, 10, 50*time.Millisecond)
	require.Empty(t, events)
	require.Equal(t, uint64(1), next)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitSinceContextCancel(t *testing.T) {
	l := New("r1", 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	events, next := l.WaitSince(ctx, 0, 10, 5*time.Second)
	require.Empty(t, events)
	require.Equal(t, uint64(0), next)
}

func TestWaitSinceReturnsImmediatelyWhenEventsPresent(t *testing.T) {
	l := New("r1", 0, 0)
	l.Append(protocol.EventChatMessage, 0, time.Now(), nil)
	start := time.Now()
	events, _ := l.WaitSince(context.Background(), 0, 10, 25*time.Second)
	require.Len(t, events, 1)
	require.Less(t, time.Since(start), time.Second)
}
