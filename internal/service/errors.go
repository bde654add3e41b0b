package service

import (
	"errors"
	"fmt"
)

// Categories. Handlers map these to status codes; anything else coming out
// of a service is an infrastructure failure.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrUsernameTaken   = fmt.Errorf("%w: username already taken", ErrConflict)
	ErrContactExists   = fmt.Errorf("%w: already a contact", ErrConflict)
	ErrUserNotFound    = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrContactNotFound = fmt.Errorf("%w: contact not found", ErrNotFound)
	ErrMessageNotFound = fmt.Errorf("%w: message not found", ErrNotFound)
	ErrCannotAddSelf   = fmt.Errorf("%w: cannot add yourself as a contact", ErrValidation)
	ErrNotContact      = fmt.Errorf("%w: receiver is not a contact", ErrForbidden)
	ErrNotReceiver     = fmt.Errorf("%w: only the receiver can mark a message read", ErrForbidden)
	ErrInvalidCreds    = fmt.Errorf("%w: invalid username or private key", ErrUnauthorized)
)
