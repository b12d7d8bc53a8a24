package entity

import "errors"

// Failure taxonomy shared by the service layer and the HTTP façade.
// Handlers map these to status codes with errors.Is; everything else
// surfaces as an internal error.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyUsed     = errors.New("already used")
	ErrAlreadyVerified = errors.New("already verified")
	ErrDuplicate       = errors.New("already exists")
	ErrValidation      = errors.New("invalid request")
	ErrUnavailable     = errors.New("service unavailable")
)
