package handler

import (
	"strings"

	"dataspace/internal/dda/models"
	dErrors "dataspace/pkg/domain-errors"
)

// TemplateRequest is the HTTP request body for creating a template lineage
// or appending a new version.
type TemplateRequest struct {
	Body models.Body `json:"dataDisclosureAgreement"`
	Tags []string    `json:"tags"`
}

// Validate validates the embedded agreement body.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *TemplateRequest) Validate() error {
	if err := r.Body.Validate(); err != nil {
		return err
	}
	for i, tag := range r.Tags {
		r.Tags[i] = strings.TrimSpace(tag)
		if r.Tags[i] == "" {
			return dErrors.New(dErrors.CodeValidation, "tags must not contain empty entries")
		}
	}
	return nil
}

// StatusRequest is the HTTP request body for changing a template's status.
type StatusRequest struct {
	Status string `json:"status"`

	parsedStatus models.Status
}

func (r *StatusRequest) Validate() error {
	status := models.Status(strings.TrimSpace(strings.ToLower(r.Status)))
	if !status.Valid() {
		return dErrors.New(dErrors.CodeValidation, "status must be one of draft, published, archived")
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated status.
func (r *StatusRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}

// TagsRequest is the HTTP request body for replacing a template's tags.
type TagsRequest struct {
	Tags []string `json:"tags"`
}

func (r *TagsRequest) Validate() error {
	for i, tag := range r.Tags {
		r.Tags[i] = strings.TrimSpace(tag)
		if r.Tags[i] == "" {
			return dErrors.New(dErrors.CodeValidation, "tags must not contain empty entries")
		}
	}
	return nil
}
