// Package models holds the DIDComm connection read model maintained from
// connection webhook events.
package models

import (
	"time"

	"github.com/google/uuid"
)

// State mirrors the connection protocol states reported by the agent.
type State string

const (
	StateInvitation State = "invitation"
	StateRequest    State = "request"
	StateResponse   State = "response"
	StateActive     State = "active"
	StateCompleted  State = "completed"
	StateAbandoned  State = "abandoned"
)

func (s State) Valid() bool {
	switch s {
	case StateInvitation, StateRequest, StateResponse, StateActive, StateCompleted, StateAbandoned:
		return true
	}
	return false
}

// Usable reports whether agreement exchanges may run over this connection.
func (s State) Usable() bool {
	return s == StateActive || s == StateCompleted
}

// Connection is the portal's view of one agent-to-agent connection. State is
// advanced only by webhook events; the portal never runs the protocol itself.
type Connection struct {
	ID            uuid.UUID `json:"id"`
	ConnectionID  string    `json:"connectionId"`
	State         State     `json:"state"`
	TheirLabel    string    `json:"theirLabel,omitempty"`
	TheirDID      string    `json:"theirDid,omitempty"`
	InvitationKey string    `json:"invitationKey,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// New builds a connection record from the first event seen for a connection id.
func New(connectionID string, state State, now time.Time) *Connection {
	return &Connection{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		State:        state,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
