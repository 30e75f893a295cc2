// Package webhook normalizes the external agent's webhook deliveries into
// internal events. Normalization is pure: it either yields an event or a
// malformed-event rejection, never a side effect.
package webhook

import (
	"encoding/json"
	"errors"

	ddamodels "dataspace/internal/dda/models"
)

// ErrMalformedEvent marks payloads missing their correlation fields or using
// an unknown state. Handlers acknowledge and drop these; the agent contract
// is fire-and-forget.
var ErrMalformedEvent = errors.New("malformed webhook event")

// Kind names a normalized event kind.
type Kind string

const (
	KindConnectionStateChanged   Kind = "connection_state_changed"
	KindPresentationStateChanged Kind = "presentation_state_changed"
	KindDdaPublished             Kind = "dda_published"
)

// Presentation exchange states as delivered on the present_proof topic.
const (
	PresentationStateRequestSent          = "request_sent"
	PresentationStatePresentationReceived = "presentation_received"
	PresentationStateVerified             = "verified"
	PresentationStateAbandoned            = "abandoned"
	PresentationStateError                = "error"
)

// Event is one normalized webhook delivery.
type Event struct {
	Kind Kind

	ConnectionID           string
	ThreadID               string
	PresentationExchangeID string
	State                  string
	Role                   string

	// present_proof payload extras
	DataAgreement       *ddamodels.Body
	DataAgreementStatus string
	PresentationRequest json.RawMessage
	Presentation        json.RawMessage

	// connections payload extras
	TheirLabel    string
	TheirDID      string
	InvitationKey string

	// published_data_disclosure_agreement payload extras
	TemplateID    string
	ConnectionURL string
}

// CorrelationKey is the idempotency ledger key for this event. Events that
// correlate to the same protocol exchange share a key regardless of topic
// delivery order.
func (e Event) CorrelationKey() string {
	switch e.Kind {
	case KindConnectionStateChanged:
		return "conn:" + e.ConnectionID
	case KindPresentationStateChanged:
		if e.ThreadID != "" {
			return "pp:" + e.ThreadID
		}
		return "pp:" + e.PresentationExchangeID
	case KindDdaPublished:
		return "dda:" + e.TemplateID + ":" + e.ConnectionID
	}
	return ""
}

// Ordinal is the logical position of this event within its exchange. The
// ledger stores the highest applied ordinal per correlation key; an incoming
// event at the same or an earlier ordinal is a duplicate.
func (e Event) Ordinal() int {
	switch e.Kind {
	case KindConnectionStateChanged:
		return connectionOrdinal(e.State)
	case KindPresentationStateChanged:
		switch e.State {
		case PresentationStateRequestSent:
			return 1
		case PresentationStatePresentationReceived:
			return 2
		case PresentationStateVerified:
			return 3
		case PresentationStateAbandoned, PresentationStateError:
			return 4
		}
	case KindDdaPublished:
		return 1
	}
	return 0
}

func connectionOrdinal(state string) int {
	switch state {
	case "invitation":
		return 1
	case "request":
		return 2
	case "response":
		return 3
	case "active":
		return 4
	case "completed":
		return 5
	case "abandoned":
		return 6
	}
	return 0
}
