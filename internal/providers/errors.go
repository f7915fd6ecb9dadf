package providers

import (
	"errors"
)

// ErrProviderUnavailable is returned when a provider isn't ready for use yet or
// couldn't be reached after exhausting its retry budget.
var ErrProviderUnavailable = errors.New("provider isn't currently available")

// ErrNoUpdateAvailable is returned when the provider has no release on offer.
var ErrNoUpdateAvailable = errors.New("no update available")

// ErrInvalidIndex is returned when a release index can't be parsed. Unlike a
// network failure, a malformed document is never retried against a mirror.
var ErrInvalidIndex = errors.New("invalid release index")

// ErrNoPackage is returned when a release carries no usable package file for
// the local platform.
var ErrNoPackage = errors.New("release has no package for this platform")
