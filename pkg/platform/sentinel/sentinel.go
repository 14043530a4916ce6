package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, lockers and producers return
// these (optionally wrapped) so services can translate them into coded domain
// errors without inspecting driver types.
//
//   - ErrNotFound: no record matches the lookup
//   - ErrLockHeld: a keyed lock is held by another owner
//   - ErrInvalidState: a lock or record is in the wrong state for the operation
//   - ErrUnavailable: backing service unreachable or closed
var (
	ErrNotFound     = errors.New("not found")
	ErrLockHeld     = errors.New("lock held")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
