// Package runtime owns the live side of the system: the in-memory
// subscription registry and the broadcast dispatcher. Nothing here is
// durable; a restart drops every connection and subscribers recover
// through the catch-up queries.
package runtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/errors"
)

// CloseReason names the three terminal transitions of a connection.
type CloseReason string

const (
	CloseCompleted CloseReason = "completed"
	CloseTimedOut  CloseReason = "timed_out"
	CloseErrored   CloseReason = "errored"
)

// Frame is one delivered event: a name and its serialized payload.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Connection is one subscriber's live stream to one room. It belongs to
// exactly one registry entry and is never reused after a terminal
// transition. All three transitions funnel into the same idempotent close.
type Connection struct {
	ID        uuid.UUID
	Room      domain.RoomID
	CreatedAt time.Time

	deadline  time.Time
	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
	reason    CloseReason
	onClose   func(c *Connection, reason CloseReason)
}

func newConnection(room domain.RoomID, lifetime time.Duration, buffer int,
	onClose func(c *Connection, reason CloseReason)) *Connection {
	now := time.Now().UTC()
	return &Connection{
		ID:        uuid.New(),
		Room:      room,
		CreatedAt: now,
		deadline:  now.Add(lifetime),
		frames:    make(chan Frame, buffer),
		done:      make(chan struct{}),
		onClose:   onClose,
	}
}

// Frames is the stream the transport edge drains into its socket.
func (c *Connection) Frames() <-chan Frame { return c.frames }

// Done is closed on the first terminal transition.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Reason is only meaningful once Done is closed.
func (c *Connection) Reason() CloseReason { return c.reason }

// Expired reports whether the bounded lifetime has elapsed.
func (c *Connection) Expired(now time.Time) bool { return now.After(c.deadline) }

// Complete ends the stream after a normal client close.
func (c *Connection) Complete() { c.terminate(CloseCompleted) }

// Timeout ends the stream once the maximum lifetime is exceeded.
func (c *Connection) Timeout() { c.terminate(CloseTimedOut) }

// Fail ends the stream after a transport fault.
func (c *Connection) Fail(error) { c.terminate(CloseErrored) }

func (c *Connection) terminate(reason CloseReason) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
		if c.onClose != nil {
			c.onClose(c, reason)
		}
	})
}

// deliver hands one frame to the connection. It gives a lagging consumer
// until the timeout to free buffer space, then reports a transport failure
// so the dispatcher can drop the connection.
func (c *Connection) deliver(f Frame, timeout time.Duration) error {
	select {
	case <-c.done:
		return fmt.Errorf("%w: connection already closed", errors.ErrTransportFailure)
	case c.frames <- f:
		return nil
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-c.done:
		return fmt.Errorf("%w: connection already closed", errors.ErrTransportFailure)
	case c.frames <- f:
		return nil
	case <-t.C:
		return fmt.Errorf("%w: delivery timed out", errors.ErrTransportFailure)
	}
}
