package models

import "errors"

var (
	ErrAuthMissing          = errors.New("unauthorized: missing token")
	ErrAuthInvalid          = errors.New("unauthorized: invalid token")
	ErrIdentityUnavailable  = errors.New("identity provider unavailable")
	ErrSignupRejected       = errors.New("signup rejected")
	ErrSignupNotSupported   = errors.New("signup not supported by identity driver")
	ErrStore                = errors.New("store failure")
	ErrInvalidKind          = errors.New("invalid metric kind")
	ErrValidation           = errors.New("validation failed")
	ErrNetwork              = errors.New("network failure")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
)
