// Package models defines the dataspace user created during onboarding.
package models

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "dataspace/pkg/domain-errors"
)

// User is an onboarded portal account. Each user administers exactly one
// organisation, identified by OrgID from the moment of registration.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash []byte    `json:"-"`
	OrgID        uuid.UUID `json:"organisationId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail lowercases and trims an address, validating its shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "invalid email address")
	}
	return email, nil
}

// New builds a user with a fresh organisation identifier.
func New(email, name string, passwordHash []byte, now time.Time) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		OrgID:        uuid.New(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
