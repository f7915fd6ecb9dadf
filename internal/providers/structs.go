package providers

import (
	"context"

	"github.com/quotedesk/selfupdate/api"
)

// Provider represents a release provider for application updates.
type Provider interface {
	ClearCache(ctx context.Context) error

	Type() string

	// Latest returns a descriptor for the newest release the provider offers.
	// Deciding whether that release is an upgrade is the caller's business.
	Latest(ctx context.Context) (*api.ReleaseDescriptor, error)

	load(ctx context.Context) error
}
