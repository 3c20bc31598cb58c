package session

import "errors"

var (
	// ErrMissingCredential means no access token was found in the ephemeral tier.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInconsistentSession means only one of credential and identity was
	// found, or a stored record could not be decoded.
	ErrInconsistentSession = errors.New("inconsistent session")
	// ErrInsufficientRole means an identity exists but its role is not allowed.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrProviderSignOut wraps failures of the provider-side sign-out call.
	ErrProviderSignOut = errors.New("provider sign-out failed")
	// ErrStorageUnavailable wraps tier read/write failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
