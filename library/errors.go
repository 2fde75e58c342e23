package library

import "errors"

// Sentinel errors returned by the store and the circulation engine.
// Callers match them with errors.Is; messages carry the offending id.
var (
	ErrNotFound          = errors.New("library: not found")
	ErrOutOfStock        = errors.New("library: out of stock")
	ErrAlreadyReturned   = errors.New("library: loan already returned")
	ErrDuplicateEmail    = errors.New("library: email already registered")
	ErrDuplicateCategory = errors.New("library: category already exists")
	ErrInvalidArgument   = errors.New("library: invalid argument")
)
