package runtime

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func TestRegistry_Subscribe_One_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), time.Minute, 8)
	room := domain.RoomID("general")

	// Given no room exists
	req.Nil(registry.Snapshot(room))

	// When a client subscribes
	c := registry.Subscribe(room)

	// Then the room holds exactly that connection
	snapshot := registry.Snapshot(room)
	req.Len(snapshot, 1)
	req.Equal(c.ID, snapshot[0].ID)
	req.Equal(room, c.Room)
}

func TestRegistry_Terminal_Transitions_Remove(t *testing.T) {
	req := require.New(t)
	room := domain.RoomID("general")

	tests := []struct {
		name      string
		terminate func(c *Connection)
		reason    CloseReason
	}{
		{"Completed", func(c *Connection) { c.Complete() }, CloseCompleted},
		{"Timed out", func(c *Connection) { c.Timeout() }, CloseTimedOut},
		{"Errored", func(c *Connection) { c.Fail(nil) }, CloseErrored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry(slog.Default(), time.Minute, 8)
			c := registry.Subscribe(room)

			tt.terminate(c)

			// The connection is gone and the empty room leaves no entry
			req.Nil(registry.Snapshot(room))
			req.Equal(tt.reason, c.Reason())
			select {
			case <-c.Done():
			default:
				req.Fail("Done should be closed after a terminal transition")
			}
		})
	}
}

func TestRegistry_Removal_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), time.Minute, 8)
	room := domain.RoomID("general")

	keep := registry.Subscribe(room)
	c := registry.Subscribe(room)

	// All three terminal paths converge; calling them repeatedly is safe
	c.Complete()
	c.Fail(nil)
	c.Timeout()
	c.Complete()

	// The first transition wins and sticks
	req.Equal(CloseCompleted, c.Reason())
	snapshot := registry.Snapshot(room)
	req.Len(snapshot, 1)
	req.Equal(keep.ID, snapshot[0].ID)
}

func TestRegistry_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), time.Minute, 8)
	room := domain.RoomID("general")

	registry.Subscribe(room)
	snapshot := registry.Snapshot(room)
	req.Len(snapshot, 1)

	// Mutating the registry after the snapshot does not touch the copy
	registry.Subscribe(room)
	snapshot[0].Complete()
	req.Len(snapshot, 1)
}

func TestRegistry_Concurrent_Subscribe_And_Close(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), time.Minute, 8)
	room := domain.RoomID("general")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := registry.Subscribe(room)
			registry.Snapshot(room)
			c.Complete()
		}()
	}
	wg.Wait()

	req.Nil(registry.Snapshot(room))
}

func TestRegistry_Expired(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), 10*time.Millisecond, 8)
	room := domain.RoomID("general")

	c := registry.Subscribe(room)

	// Fresh connection is not expired
	req.Empty(registry.Expired(c.CreatedAt))

	// Past the deadline it is listed
	expired := registry.Expired(c.CreatedAt.Add(time.Second))
	req.Len(expired, 1)
	req.Equal(c.ID, expired[0].ID)
}

func TestRegistry_Stats(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default(), time.Minute, 8)

	registry.Subscribe("general")
	registry.Subscribe("general")
	registry.Subscribe("random")

	rooms, connections := registry.Stats()
	req.Equal(2, rooms)
	req.Equal(3, connections)
}
