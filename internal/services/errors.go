package services

import "errors"

// ValidationError marks malformed caller input. Handlers surface it
// verbatim with a 400 status.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// ErrInvalidCredentials is returned for both an unknown email and a
// wrong password so callers cannot probe which accounts exist.
var ErrInvalidCredentials = errors.New("invalid email or password")
