package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	ddamodels "dataspace/internal/dda/models"
)

// connectionPayload is the wire shape of the connections topic.
type connectionPayload struct {
	ConnectionID  string `json:"connection_id"`
	State         string `json:"state"`
	TheirLabel    string `json:"their_label"`
	TheirDID      string `json:"their_did"`
	InvitationKey string `json:"invitation_key"`
}

// presentProofPayload is the wire shape of the present_proof topic.
type presentProofPayload struct {
	PresentationExchangeID  string          `json:"presentation_exchange_id"`
	ThreadID                string          `json:"thread_id"`
	ConnectionID            string          `json:"connection_id"`
	State                   string          `json:"state"`
	Role                    string          `json:"role"`
	DataAgreement           *ddamodels.Body `json:"data_agreement"`
	DataAgreementStatus     string          `json:"data_agreement_status"`
	PresentationRequestDict json.RawMessage `json:"presentation_request_dict"`
	Presentation            json.RawMessage `json:"presentation"`
}

// publishedDdaPayload is the wire shape of the
// published_data_disclosure_agreement topic.
type publishedDdaPayload struct {
	ConnectionID  string          `json:"connection_id"`
	TemplateID    string          `json:"template_id"`
	ConnectionURL string          `json:"connection_url"`
	Dda           *ddamodels.Body `json:"dda"`
}

// NormalizeConnection validates a connections topic delivery.
func NormalizeConnection(raw []byte) (Event, error) {
	var p connectionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	p.ConnectionID = strings.TrimSpace(p.ConnectionID)
	if p.ConnectionID == "" {
		return Event{}, fmt.Errorf("%w: connection_id is required", ErrMalformedEvent)
	}
	p.State = strings.TrimSpace(p.State)
	if connectionOrdinal(p.State) == 0 {
		return Event{}, fmt.Errorf("%w: unknown connection state %q", ErrMalformedEvent, p.State)
	}
	return Event{
		Kind:          KindConnectionStateChanged,
		ConnectionID:  p.ConnectionID,
		State:         p.State,
		TheirLabel:    p.TheirLabel,
		TheirDID:      p.TheirDID,
		InvitationKey: p.InvitationKey,
	}, nil
}

// NormalizePresentProof validates a present_proof topic delivery. At least one
// of thread_id and presentation_exchange_id must be present.
func NormalizePresentProof(raw []byte) (Event, error) {
	var p presentProofPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	p.ThreadID = strings.TrimSpace(p.ThreadID)
	p.PresentationExchangeID = strings.TrimSpace(p.PresentationExchangeID)
	if p.ThreadID == "" && p.PresentationExchangeID == "" {
		return Event{}, fmt.Errorf("%w: thread_id or presentation_exchange_id is required", ErrMalformedEvent)
	}
	switch p.State {
	case PresentationStateRequestSent, PresentationStatePresentationReceived,
		PresentationStateVerified, PresentationStateAbandoned, PresentationStateError:
	default:
		return Event{}, fmt.Errorf("%w: unknown presentation state %q", ErrMalformedEvent, p.State)
	}
	if p.State == PresentationStateRequestSent && strings.TrimSpace(p.ConnectionID) == "" {
		// Binding a request to its pending record needs the connection.
		return Event{}, fmt.Errorf("%w: connection_id is required for request_sent", ErrMalformedEvent)
	}
	return Event{
		Kind:                   KindPresentationStateChanged,
		ConnectionID:           strings.TrimSpace(p.ConnectionID),
		ThreadID:               p.ThreadID,
		PresentationExchangeID: p.PresentationExchangeID,
		State:                  p.State,
		Role:                   p.Role,
		DataAgreement:          p.DataAgreement,
		DataAgreementStatus:    p.DataAgreementStatus,
		PresentationRequest:    p.PresentationRequestDict,
		Presentation:           p.Presentation,
	}, nil
}

// NormalizePublishedDda validates a published_data_disclosure_agreement topic
// delivery.
func NormalizePublishedDda(raw []byte) (Event, error) {
	var p publishedDdaPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	p.TemplateID = strings.TrimSpace(p.TemplateID)
	p.ConnectionID = strings.TrimSpace(p.ConnectionID)
	if p.TemplateID == "" {
		return Event{}, fmt.Errorf("%w: template_id is required", ErrMalformedEvent)
	}
	if p.ConnectionID == "" {
		return Event{}, fmt.Errorf("%w: connection_id is required", ErrMalformedEvent)
	}
	if p.Dda == nil {
		return Event{}, fmt.Errorf("%w: dda body is required", ErrMalformedEvent)
	}
	if err := p.Dda.Validate(); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	event := Event{
		Kind:          KindDdaPublished,
		ConnectionID:  p.ConnectionID,
		TemplateID:    p.TemplateID,
		ConnectionURL: p.ConnectionURL,
		DataAgreement: p.Dda,
	}
	if p.ConnectionURL != "" {
		// The invitation URL travels inside the agreement body.
		event.DataAgreement.Connection = &ddamodels.ConnectionInfo{InvitationURL: p.ConnectionURL}
	}
	return event, nil
}
