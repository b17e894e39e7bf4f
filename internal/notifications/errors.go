package notifications

import "errors"

// Service errors.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrGroupNotFound        = errors.New("customer group not found")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrEmptyTitle           = errors.New("title must not be empty")
	ErrEmptyMessage         = errors.New("message must not be empty")
	ErrInvalidCategory      = errors.New("unknown notification category")
	ErrInvalidTarget        = errors.New("invalid notification target")
	ErrNotGroupTargeted     = errors.New("notification is not group-targeted")
	ErrAlreadyExpanded      = errors.New("notification already expanded")
	ErrNoRecipients         = errors.New("no recipients specified")
)
