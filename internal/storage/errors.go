package storage

import "errors"

// ErrNotFound is returned when a term, ledger entry, or tracker row
// does not exist.
var ErrNotFound = errors.New("storage: not found")
