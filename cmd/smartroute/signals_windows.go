//go:build windows

package main

import "os"

// reloadSignals returns nothing on Windows, which has no SIGHUP.
func reloadSignals() []os.Signal {
	return nil
}
