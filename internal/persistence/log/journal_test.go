package log

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tileworld.ai/internal/protocol"
)

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := NewEventJournal(dir, "r1")

	for i := uint64(1); i <= 5; i++ {
		err := j.WriteEvent(protocol.Envelope{
			Cursor: i,
			Type:   protocol.EventChatMessage,
			RoomID: "r1",
			Tick:   i * 10,
			TS:     1700000000000 + int64(i),
			Payload: protocol.Payload{
				"text": "hello",
			},
		})
		require.NoError(t, err)
	}
	require.NoError(t, j.Close())

	events, err := ReadEvents(dir, "r1")
	require.NoError(t, err)
	require.Len(t, events, 5)
	require.Equal(t, uint64(1), events[0].Cursor)
	require.Equal(t, uint64(5), events[4].Cursor)
	require.Equal(t, "hello", events[2].Payload["text"])
}

func TestReadEventsMissingRoom(t *testing.T) {
	events, err := ReadEvents(t.TempDir(), "ghost")
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestJournalIsolatesRooms(t *testing.T) {
	dir := t.TempDir()
	a := NewEventJournal(dir, "a")
	b := NewEventJournal(dir, "b")
	require.NoError(t, a.WriteEvent(protocol.Envelope{Cursor: 1, Type: protocol.EventPresenceJoin, RoomID: "a"}))
	require.NoError(t, b.WriteEvent(protocol.Envelope{Cursor: 1, Type: protocol.EventPresenceJoin, RoomID: "b"}))
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	got, err := ReadEvents(dir, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].RoomID)
}
