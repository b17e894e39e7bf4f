package identity

import "errors"

// Identity business logic errors.
var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)
