package worker

import (
	"context"
	"log/slog"

	"dataspace/pkg/platform/audit"
)

// Worker drains the publisher channel and persists events. Store failures are
// logged and the worker keeps running; a broken audit store must not take the
// event loop down with it.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"kind", string(event.Kind),
					"record_id", event.RecordID,
					"error", err,
				)
			}
		}
	}
}
