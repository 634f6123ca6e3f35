package featureflags

import "testing"

func TestForceDryRun(t *testing.T) {
	defer SetForceDryRun(false)

	if ForceDryRunEnabled() {
		t.Error("ForceDryRunEnabled() should default to false")
	}

	SetForceDryRun(true)
	if !ForceDryRunEnabled() {
		t.Error("ForceDryRunEnabled() should be true after SetForceDryRun(true)")
	}

	SetForceDryRun(false)
	if ForceDryRunEnabled() {
		t.Error("ForceDryRunEnabled() should be false after SetForceDryRun(false)")
	}
}
