package board

import "errors"

// Common storage errors. Backends wrap their driver errors with these so
// callers can use errors.Is regardless of the database in use.
var (
	// ErrNotFound indicates that a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate indicates a unique constraint was violated, for example a
	// second column with the same title on one board.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity indicates the entity failed a storage constraint
	// (foreign key, check or not-null).
	ErrInvalidEntity = errors.New("invalid entity")
)
