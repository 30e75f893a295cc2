// Package models defines the organisation entity behind the data-source
// profile. One organisation exists per authenticated tenant; its identifier is
// the organisation claim of the caller's token.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "dataspace/pkg/domain-errors"
)

// Verification states mirror the presentation exchange driving identity
// verification of the organisation itself.
const (
	VerificationStateUnverified  = "unverified"
	VerificationStateRequestSent = "request_sent"
	VerificationStateVerified    = "verified"
	VerificationStateAbandoned   = "abandoned"
)

// Verification tracks the identity presentation exchange of an organisation.
// It is server-managed: BeginVerification records the exchange, and the
// present_proof webhook resolves it.
type Verification struct {
	PresentationExchangeID string `json:"presentationExchangeId,omitempty"`
	State                  string `json:"state"`
	Verified               bool   `json:"verified"`
}

// Organisation is the data-source profile of a tenant.
type Organisation struct {
	ID                  uuid.UUID    `json:"id"`
	Name                string       `json:"name"`
	Description         string       `json:"description,omitempty"`
	Sector              string       `json:"sector,omitempty"`
	Location            string       `json:"location,omitempty"`
	PolicyURL           string       `json:"policyUrl,omitempty"`
	LogoURL             string       `json:"logoUrl,omitempty"`
	CoverImageURL       string       `json:"coverImageUrl,omitempty"`
	OpenAPIURL          string       `json:"openApiUrl,omitempty"`
	AccessPointEndpoint string       `json:"accessPointEndpoint,omitempty"`
	Verification        Verification `json:"verification"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// Profile carries the caller-editable fields of an organisation.
type Profile struct {
	Name                string
	Description         string
	Sector              string
	Location            string
	PolicyURL           string
	LogoURL             string
	CoverImageURL       string
	OpenAPIURL          string
	AccessPointEndpoint string
}

func (p *Profile) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "organisation name is required")
	}
	return nil
}

// New builds an organisation for a tenant from its profile.
func New(id uuid.UUID, p Profile, now time.Time) (*Organisation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	o := &Organisation{
		ID:           id,
		Verification: Verification{State: VerificationStateUnverified},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.applyProfile(p, now)
	return o, nil
}

// ApplyProfile overwrites the editable fields. Verification state is
// untouched; it only moves through the exchange flow.
func (o *Organisation) ApplyProfile(p Profile, now time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	o.applyProfile(p, now)
	return nil
}

func (o *Organisation) applyProfile(p Profile, now time.Time) {
	o.Name = p.Name
	o.Description = p.Description
	o.Sector = p.Sector
	o.Location = p.Location
	o.PolicyURL = p.PolicyURL
	o.LogoURL = p.LogoURL
	o.CoverImageURL = p.CoverImageURL
	o.OpenAPIURL = p.OpenAPIURL
	o.AccessPointEndpoint = p.AccessPointEndpoint
	o.UpdatedAt = now
}

// BeginVerification records a fresh presentation exchange. Re-verification of
// an already verified organisation starts over.
func (o *Organisation) BeginVerification(presentationExchangeID string, now time.Time) error {
	presentationExchangeID = strings.TrimSpace(presentationExchangeID)
	if presentationExchangeID == "" {
		return dErrors.New(dErrors.CodeValidation, "presentationExchangeId is required")
	}
	o.Verification = Verification{
		PresentationExchangeID: presentationExchangeID,
		State:                  VerificationStateRequestSent,
	}
	o.UpdatedAt = now
	return nil
}

// ResolveVerification moves the exchange to its outcome state. Only the
// exchange recorded by BeginVerification can resolve it.
func (o *Organisation) ResolveVerification(presentationExchangeID, state string, now time.Time) error {
	if o.Verification.PresentationExchangeID == "" ||
		o.Verification.PresentationExchangeID != presentationExchangeID {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown presentation exchange")
	}
	o.Verification.State = state
	o.Verification.Verified = state == VerificationStateVerified
	o.UpdatedAt = now
	return nil
}
