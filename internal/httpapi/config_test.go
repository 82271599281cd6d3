package httpapi

import "testing"

func TestSetMaxBodyBytes(t *testing.T) {
	old := maxBodyBytes
	defer SetMaxBodyBytes(old)

	SetMaxBodyBytes(2048)
	if maxBodyBytes != 2048 {
		t.Fatalf("maxBodyBytes = %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("maxBodyBytes = %d, want default", maxBodyBytes)
	}
}

func TestSetSamplingDefaultsIgnoresZeroValues(t *testing.T) {
	oldSteps, oldCFG, oldSolver, oldShift := defaultSteps, defaultCFGScale, defaultSolver, defaultTimeShift
	defer func() {
		defaultSteps, defaultCFGScale, defaultSolver, defaultTimeShift = oldSteps, oldCFG, oldSolver, oldShift
	}()

	SetSamplingDefaults(60, 7, "rk4", 6)
	if defaultSteps != 60 || defaultCFGScale != 7 || defaultSolver != "rk4" || defaultTimeShift != 6 {
		t.Fatalf("defaults = %d %g %s %g", defaultSteps, defaultCFGScale, defaultSolver, defaultTimeShift)
	}
	SetSamplingDefaults(0, 0, "", 0)
	if defaultSteps != 60 || defaultCFGScale != 7 || defaultSolver != "rk4" || defaultTimeShift != 6 {
		t.Fatal("zero values overwrote defaults")
	}
}
