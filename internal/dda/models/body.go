package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	dErrors "dataspace/pkg/domain-errors"
)

// Body is the full Data Disclosure Agreement content: what personal data is
// shared, under which legal basis, and under which restrictions. It is
// embedded in template versions and snapshotted verbatim into agreement
// records at verification time.
type Body struct {
	Language                string                  `json:"language,omitempty"`
	Purpose                 string                  `json:"purpose"`
	PurposeDescription      string                  `json:"purposeDescription,omitempty"`
	LawfulBasis             string                  `json:"lawfulBasis"`
	DataController          DataController          `json:"dataController"`
	AgreementPeriod         int                     `json:"agreementPeriod,omitempty"`
	DataSharingRestrictions DataSharingRestrictions `json:"dataSharingRestrictions"`
	PersonalData            []PersonalDatum         `json:"personalData,omitempty"`
	Dpia                    string                  `json:"dpia,omitempty"`
	CodeOfConduct           string                  `json:"codeOfConduct,omitempty"`
	Connection              *ConnectionInfo         `json:"connection,omitempty"`
	Proof                   *Proof                  `json:"proof,omitempty"`
}

// DataController identifies the organisation answerable for the processing.
type DataController struct {
	DID            string `json:"did,omitempty"`
	Name           string `json:"name"`
	URL            string `json:"url,omitempty"`
	IndustrySector string `json:"industrySector,omitempty"`
}

// DataSharingRestrictions bounds how shared data may be handled.
type DataSharingRestrictions struct {
	PolicyURL             string `json:"policyUrl"`
	Jurisdiction          string `json:"jurisdiction"`
	IndustrySector        string `json:"industrySector,omitempty"`
	DataRetentionPeriod   int    `json:"dataRetentionPeriod"`
	GeographicRestriction string `json:"geographicRestriction,omitempty"`
	StorageLocation       string `json:"storageLocation,omitempty"`
}

// PersonalDatum is one attribute covered by the agreement.
type PersonalDatum struct {
	AttributeID          string `json:"attributeId,omitempty"`
	AttributeName        string `json:"attributeName"`
	AttributeDescription string `json:"attributeDescription,omitempty"`
	AttributeSensitive   bool   `json:"attributeSensitive,omitempty"`
}

// ConnectionInfo carries the invitation URL the publishing agent delivered
// the agreement over.
type ConnectionInfo struct {
	InvitationURL string `json:"invitationUrl"`
}

// Proof is the cryptographic proof block attached by the publishing agent.
// Stored and echoed verbatim; this service does not verify signatures.
type Proof struct {
	ID                 string `json:"id,omitempty"`
	Type               string `json:"type,omitempty"`
	Created            string `json:"created,omitempty"`
	VerificationMethod string `json:"verificationMethod,omitempty"`
	ProofPurpose       string `json:"proofPurpose,omitempty"`
	ProofValue         string `json:"proofValue,omitempty"`
}

// Validate checks the fields every agreement needs before it can enter the
// store. Returns a validation-coded error naming the first missing field.
func (b Body) Validate() error {
	switch {
	case b.Purpose == "":
		return dErrors.New(dErrors.CodeValidation, "purpose is required")
	case b.LawfulBasis == "":
		return dErrors.New(dErrors.CodeValidation, "lawfulBasis is required")
	case b.DataController.Name == "":
		return dErrors.New(dErrors.CodeValidation, "dataController.name is required")
	case b.DataSharingRestrictions.PolicyURL == "":
		return dErrors.New(dErrors.CodeValidation, "dataSharingRestrictions.policyUrl is required")
	case b.DataSharingRestrictions.Jurisdiction == "":
		return dErrors.New(dErrors.CodeValidation, "dataSharingRestrictions.jurisdiction is required")
	case b.DataSharingRestrictions.DataRetentionPeriod <= 0:
		return dErrors.New(dErrors.CodeValidation, "dataSharingRestrictions.dataRetentionPeriod must be positive")
	}
	return nil
}

// RevisionID derives a content-addressed identifier for the body: sha256
// over the JCS (RFC 8785) canonical form, so semantically identical bodies
// hash identically regardless of field order in the source JSON.
func (b Body) RevisionID() (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshal agreement body: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize agreement body: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
