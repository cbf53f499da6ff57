//go:build windows

package main

import "os"

// shutdownSignals stop the long-running commands. Windows has no SIGTERM.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
