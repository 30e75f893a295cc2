package publisher

import (
	"context"
	"log/slog"
	"sync/atomic"

	"dataspace/pkg/platform/audit"
)

// ChannelPublisher hands events to an in-process worker over a buffered
// channel. Publish never blocks the request path: when the buffer is full the
// event is dropped and counted, on the grounds that losing an audit entry is
// preferable to stalling a webhook acknowledgement.
type ChannelPublisher struct {
	inbox   chan audit.Event
	dropped atomic.Int64
	logger  *slog.Logger
}

// New creates a publisher with the given buffer size.
func New(buffer int, logger *slog.Logger) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelPublisher{
		inbox:  make(chan audit.Event, buffer),
		logger: logger,
	}
}

// Publish enqueues the event, dropping it when the buffer is full.
func (p *ChannelPublisher) Publish(ctx context.Context, event audit.Event) error {
	select {
	case p.inbox <- event:
	default:
		n := p.dropped.Add(1)
		p.logger.WarnContext(ctx, "audit event dropped, buffer full",
			"kind", string(event.Kind),
			"dropped_total", n,
		)
	}
	return nil
}

// Inbox exposes the receive side for the worker.
func (p *ChannelPublisher) Inbox() <-chan audit.Event {
	return p.inbox
}

// Dropped reports how many events were discarded due to backpressure.
func (p *ChannelPublisher) Dropped() int64 {
	return p.dropped.Load()
}
