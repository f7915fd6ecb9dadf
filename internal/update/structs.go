package update

import (
	"context"

	"github.com/quotedesk/selfupdate/api"
)

// Host is the running application on whose behalf updates are performed.
type Host interface {
	// CurrentVersion returns the version currently running.
	CurrentVersion() string

	// InstallRoot returns the directory the application is installed in.
	InstallRoot() string

	// RestartExecutable returns the binary the install script relaunches
	// after a successful swap.
	RestartExecutable() string

	// ProcessID returns the PID the install script waits on before touching
	// the installation.
	ProcessID() int

	// RequestShutdown asks the host to exit so the install script can take
	// over. It must not block.
	RequestShutdown()
}

// Locator finds the newest available release.
type Locator interface {
	Latest(ctx context.Context) (*api.ReleaseDescriptor, error)
}
