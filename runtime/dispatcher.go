package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// Dispatcher fans one event out to the room's current connections and to
// the permanent sinks. Delivery is best-effort, at-most-once per
// connection: no retry, no buffering beyond the connection's own channel,
// no acknowledgment. A connection that is not registered at the instant of
// the snapshot simply misses the event and reconciles through catch-up.
type Dispatcher struct {
	log             *slog.Logger
	registry        *Registry
	sinks           []contract.EventSink
	deliveryTimeout time.Duration
	sinkTimeout     time.Duration
}

func NewDispatcher(log *slog.Logger, registry *Registry,
	deliveryTimeout, sinkTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		log:             log,
		registry:        registry,
		deliveryTimeout: deliveryTimeout,
		sinkTimeout:     sinkTimeout,
	}
}

// Add registers permanent sinks. Setup-time only, not safe concurrently
// with Publish.
func (d *Dispatcher) Add(sinks ...contract.EventSink) {
	d.sinks = append(d.sinks, sinks...)
}

// Publish delivers one framed event to every connection registered for the
// event's room at the moment of the snapshot. A connection whose delivery
// fails is terminated and removed; the remaining connections still receive
// the event and Publish itself never fails because of one connection.
func (d *Dispatcher) Publish(ctx context.Context, e event.DomainEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: unserializable payload: %v", errors.ErrInvalidArgument, err)
	}
	frame := Frame{Event: e.Name(), Payload: payload}

	conns := d.registry.Snapshot(e.RoomID())
	for _, c := range conns {
		if err := c.deliver(frame, d.deliveryTimeout); err != nil {
			d.log.Warn("dropping connection after failed delivery",
				"connection_id", c.ID,
				"room_id", e.RoomID(),
				"error", err)
			c.Fail(err)
		}
	}

	d.fanoutSinks(ctx, e)
	return nil
}

// fanoutSinks feeds the permanent sinks under a per-sink timeout. A failing
// sink is logged and skipped; it never disturbs connection delivery.
func (d *Dispatcher) fanoutSinks(ctx context.Context, e event.DomainEvent) {
	for _, sink := range d.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
		if err := sink.Consume(sinkCtx, e); err != nil {
			d.log.Warn("sink failed to consume event",
				"event", e.Name(), "room_id", e.RoomID(), "error", err)
		}
		cancel()
	}
}
