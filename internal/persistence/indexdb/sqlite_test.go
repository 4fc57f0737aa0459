package indexdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tileworld.ai/internal/protocol"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndexStoresAndQueriesByType(t *testing.T) {
	idx := openTestIndex(t)

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, idx.WriteEvent(protocol.Envelope{
			Cursor:  i,
			Type:    protocol.EventChatMessage,
			RoomID:  "r1",
			Tick:    i,
			TS:      int64(1700000000000 + i),
			Payload: protocol.Payload{"entity_id": "A1", "text": "hi"},
		}))
	}
	require.NoError(t, idx.WriteEvent(protocol.Envelope{
		Cursor: 4, Type: protocol.EventPresenceJoin, RoomID: "r1",
		Payload: protocol.Payload{"entity_id": "A2"},
	}))
	idx.Flush()

	chats, err := idx.EventsByType("r1", protocol.EventChatMessage, 0)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	require.Equal(t, uint64(1), chats[0].Cursor)
	require.Equal(t, "hi", chats[0].Payload["text"])

	counts, err := idx.CountByType("r1")
	require.NoError(t, err)
	require.Equal(t, 3, counts[protocol.EventChatMessage])
	require.Equal(t, 1, counts[protocol.EventPresenceJoin])
}

func TestIndexQueriesByEntity(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.WriteEvent(protocol.Envelope{
		Cursor: 1, Type: protocol.EventPresenceJoin, RoomID: "r1",
		Payload: protocol.Payload{"entity_id": "A1"},
	}))
	require.NoError(t, idx.WriteEvent(protocol.Envelope{
		Cursor: 2, Type: protocol.EventPresenceJoin, RoomID: "r1",
		Payload: protocol.Payload{"entity_id": "A2"},
	}))
	idx.Flush()

	got, err := idx.EventsByEntity("r1", "A1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "A1", got[0].Payload["entity_id"])
}

func TestIndexReplayIsIdempotent(t *testing.T) {
	idx := openTestIndex(t)

	env := protocol.Envelope{
		Cursor: 7, Type: protocol.EventZoneEnter, RoomID: "r1",
		Payload: protocol.Payload{"entity_id": "A1", "zone": "plaza"},
	}
	require.NoError(t, idx.WriteEvent(env))
	require.NoError(t, idx.WriteEvent(env))
	idx.Flush()

	got, err := idx.EventsByType("r1", protocol.EventZoneEnter, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestWriteAfterCloseIsNoOp(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.WriteEvent(protocol.Envelope{Cursor: 1, RoomID: "r1"}))
}
