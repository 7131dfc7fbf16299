package identity

import "errors"

var (
	// ErrInvalidCredential is returned when a presented credential fails
	// verification. Absence of a credential is not an error.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrMissingSigningKey is returned when a verifier is constructed
	// without key material.
	ErrMissingSigningKey = errors.New("missing signing key")
)
