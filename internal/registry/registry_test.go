package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	persistlog "tileworld.ai/internal/persistence/log"
	"tileworld.ai/internal/protocol"
	"tileworld.ai/internal/sim/room"
)

func TestGetOrCreateReturnsSameRoom(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := New(room.Config{TickRateHz: 50}, nil, nil)
	defer reg.Shutdown()

	a, err := reg.GetOrCreate("alpha")
	require.NoError(t, err)
	b, err := reg.GetOrCreate("alpha")
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, "alpha", a.ID())
}

func TestEmptyRoomIDDefaults(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := New(room.Config{TickRateHz: 50}, nil, nil)
	defer reg.Shutdown()

	rm, err := reg.GetOrCreate("")
	require.NoError(t, err)
	require.Equal(t, "default", rm.ID())
	require.Same(t, rm, reg.Get("default"))
}

func TestRoomLoopServesRequests(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := New(room.Config{TickRateHz: 100}, nil, nil)
	defer reg.Shutdown()

	rm, err := reg.GetOrCreate("alpha")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := rm.RequestJoin(ctx, protocol.JoinRequest{RequestID: "j1", Name: "scout"})
	require.NoError(t, err)
	require.NotEmpty(t, res.ActorID)
	require.Equal(t, "alpha", res.RoomID)
}

func TestShutdownStopsLoops(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := New(room.Config{TickRateHz: 50}, nil, nil)
	_, err := reg.GetOrCreate("alpha")
	require.NoError(t, err)
	_, err = reg.GetOrCreate("beta")
	require.NoError(t, err)
	reg.Shutdown()

	_, err = reg.GetOrCreate("gamma")
	require.Error(t, err)
}

func TestCreateRoomMintsID(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := New(room.Config{TickRateHz: 50}, nil, nil)
	defer reg.Shutdown()

	a, err := reg.CreateRoom()
	require.NoError(t, err)
	b, err := reg.CreateRoom()
	require.NoError(t, err)
	require.NotEqual(t, a.ID(), b.ID())
	require.Equal(t, byte('R'), a.ID()[0])
	require.Same(t, a, reg.Get(a.ID()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := a.RequestJoin(ctx, protocol.JoinRequest{RequestID: "j1", Name: "scout"})
	require.NoError(t, err)
	require.Equal(t, a.ID(), res.RoomID)
}

func TestNewRoomIDUnique(t *testing.T) {
	a, b := NewRoomID(), NewRoomID()
	require.NotEqual(t, a, b)
	require.Equal(t, byte('R'), a[0])
}

// Compressed journal segments only become readable once the encoder is
// closed, so shutdown has to close what the factory opened.
func TestShutdownClosesRoomJournals(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	reg := New(room.Config{TickRateHz: 50}, nil, nil,
		WithJournals(func(roomID string) (room.Journal, error) {
			return persistlog.NewEventJournal(dir, roomID), nil
		}))

	rm, err := reg.GetOrCreate("alpha")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = rm.RequestJoin(ctx, protocol.JoinRequest{RequestID: "j1", Name: "scout"})
	require.NoError(t, err)

	reg.Shutdown()

	events, err := persistlog.ReadEvents(dir, "alpha")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, protocol.EventPresenceJoin, events[0].Type)
}
