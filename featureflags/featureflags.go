// Package featureflags holds process-wide runtime toggles.
package featureflags

import "sync/atomic"

var forceDryRun atomic.Bool

// SetForceDryRun forces every EEPROM write in the process to be simulated,
// regardless of the session's own dry-run option.
func SetForceDryRun(enabled bool) {
	forceDryRun.Store(enabled)
}

// ForceDryRunEnabled reports whether writes must be simulated.
func ForceDryRunEnabled() bool {
	return forceDryRun.Load()
}
