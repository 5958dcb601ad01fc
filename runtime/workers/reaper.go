package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/runtime"
)

var _ contract.Worker = (*ConnectionReaper)(nil)

// ConnectionReaper enforces the bounded lifetime of subscriptions: on each
// sweep it fires the timeout transition for every connection past its
// deadline, which converges on the registry's removal path like any other
// terminal event.
type ConnectionReaper struct {
	registry *runtime.Registry
	interval time.Duration
	log      *slog.Logger
}

func NewConnectionReaper(registry *runtime.Registry, interval time.Duration,
	log *slog.Logger) *ConnectionReaper {
	return &ConnectionReaper{registry: registry, interval: interval, log: log}
}

func (w *ConnectionReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case now := <-ticker.C:
			w.sweep(now.UTC())
		}
	}
}

func (w *ConnectionReaper) sweep(now time.Time) {
	expired := w.registry.Expired(now)
	for _, c := range expired {
		w.log.Debug("connection lifetime exceeded",
			"connection_id", c.ID, "room_id", c.Room)
		c.Timeout()
	}
	if len(expired) > 0 {
		w.log.Info("expired connections reaped", "count", len(expired))
	}
}
