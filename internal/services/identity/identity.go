// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package identity defines the credential backend capability set and its
// two implementations: the managed email+password backend that owns the
// account, and the bearer-token client for the application's own API.
package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredential  = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("identity already exists")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotFound           = errors.New("identity not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Identity is the backend-agnostic view of an authenticated principal.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	EmailVerified bool   `json:"email_verified"`
	IsAdmin       bool   `json:"is_admin"`
}

// Credential is an email+password pair.
type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Profile carries the registration payload beyond the credential itself.
type Profile struct {
	FirstName              string   `json:"first_name"`
	LastName               string   `json:"last_name"`
	ContradictionTolerance *float64 `json:"contradiction_tolerance,omitempty"`
	BeliefSensitivity      string   `json:"belief_sensitivity,omitempty"`
}

// Backend is the capability set shared by both credential backends.
type Backend interface {
	// Authenticate verifies a credential and returns the identity plus an
	// opaque session token for subsequent calls.
	Authenticate(ctx context.Context, cred Credential) (*Identity, string, error)

	// Register creates a new identity.
	Register(ctx context.Context, profile Profile, cred Credential) (*Identity, error)

	// CurrentIdentity resolves a session token to its identity, or
	// ErrUnauthenticated when the token is unknown or expired.
	CurrentIdentity(ctx context.Context, sessionToken string) (*Identity, error)

	// ResetCredential triggers a credential reset for the identified account.
	ResetCredential(ctx context.Context, email string) error
}
