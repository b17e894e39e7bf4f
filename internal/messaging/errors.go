package messaging

import "errors"

// Messaging business logic errors.
var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrThreadClosed   = errors.New("thread is closed")
	ErrNotThreadOwner = errors.New("thread belongs to another customer")
	ErrEmptySubject   = errors.New("subject cannot be empty")
	ErrEmptyBody      = errors.New("message body cannot be empty")
)
