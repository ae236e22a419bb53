package ledger

import "errors"

var (
	// ErrNotFound is returned when no delivery record exists for a message id.
	ErrNotFound = errors.New("delivery record not found")

	// ErrStorageUnavailable marks a transient datastore failure. The
	// webhook handler maps it to a 500 so the provider redelivers.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDuplicateEvent marks an event already applied once. Not a
	// failure: the handler acknowledges it as success.
	ErrDuplicateEvent = errors.New("duplicate event")
)
