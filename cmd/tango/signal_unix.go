//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals stop the long-running commands.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
