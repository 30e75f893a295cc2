package reconcile

import "errors"

var (
	// ErrDuplicateEvent means the idempotency ledger already recorded this
	// event (same or earlier ordinal). The delivery is acknowledged and
	// dropped.
	ErrDuplicateEvent = errors.New("duplicate event already applied")

	// ErrOutOfOrderEvent means the event arrived ahead of the record's state
	// (for example verified before presentation_received). The record is left
	// unchanged and the rejection is flagged for audit.
	ErrOutOfOrderEvent = errors.New("event out of order for record state")

	// ErrUnmatchedEvent means no record correlates to the event. Acknowledged
	// and dropped; the agent also reports exchanges the portal never started.
	ErrUnmatchedEvent = errors.New("no record matches event correlation")
)

// Discardable reports whether err is an accept-or-discard outcome: the
// webhook must still acknowledge with 200.
func Discardable(err error) bool {
	return errors.Is(err, ErrDuplicateEvent) ||
		errors.Is(err, ErrOutOfOrderEvent) ||
		errors.Is(err, ErrUnmatchedEvent)
}
