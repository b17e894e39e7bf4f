package customers

import "errors"

// Customer directory business logic errors.
var (
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrNoteNotFound        = errors.New("note not found")
	ErrGroupNameTaken      = errors.New("group name already in use")
	ErrEmptyGroupName      = errors.New("group name cannot be empty")
	ErrEmptyNote           = errors.New("note cannot be empty")
	ErrNoMembers           = errors.New("no customer ids given")
	ErrUnsupportedLanguage = errors.New("unsupported preferred language")
)
