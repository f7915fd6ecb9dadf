package main

import (
	"os"
	"sync"

	"github.com/quotedesk/selfupdate/internal/recovery"
)

// cliHost adapts the update tool's own process to the controller's Host
// interface. The install script waits for this process to exit before it
// swaps the installation, then relaunches the application.
type cliHost struct {
	config *Config

	// waitPID overrides the process the install script waits for. Used
	// when the tool updates a separately running QuoteDesk instance.
	waitPID int

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

func newCLIHost(config *Config) *cliHost {
	return &cliHost{
		config:   config,
		shutdown: make(chan struct{}),
	}
}

// CurrentVersion prefers the pinned configuration value and falls back to
// the version recorded by the last applied update.
func (h *cliHost) CurrentVersion() string {
	if h.config.CurrentVersion != "" {
		return h.config.CurrentVersion
	}

	report, err := recovery.Scan(h.config.InstallRoot)
	if err == nil && report.Applied != nil {
		return report.Applied.Version
	}

	return "0.0.0"
}

func (h *cliHost) InstallRoot() string {
	return h.config.InstallRoot
}

func (h *cliHost) RestartExecutable() string {
	return h.config.RestartExec
}

func (h *cliHost) ProcessID() int {
	if h.waitPID > 0 {
		return h.waitPID
	}

	return os.Getpid()
}

// RequestShutdown unblocks ShutdownRequested. The sub-commands exit right
// after, letting the install script take over.
func (h *cliHost) RequestShutdown() {
	h.shutdownOnce.Do(func() {
		close(h.shutdown)
	})
}

// ShutdownRequested returns a channel closed once the controller has handed
// off to the install script.
func (h *cliHost) ShutdownRequested() <-chan struct{} {
	return h.shutdown
}
