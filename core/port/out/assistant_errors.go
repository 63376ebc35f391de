package out

import "errors"

// Sentinel errors shared by all outbound adapters.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
