package update

import (
	"errors"
)

// ErrUpdateInProgress is returned when an update attempt is started while
// another one is still running.
var ErrUpdateInProgress = errors.New("an update attempt is already in progress")

// ErrRecoveryPending is returned when a previous update did not complete and
// its leftovers have to be resolved before a new attempt can start.
var ErrRecoveryPending = errors.New("previous update did not complete, recovery needed")
