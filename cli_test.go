package main

import "testing"

func TestRunCLIVersionReturnsTrue(t *testing.T) {
	if !RunCLI([]string{"version"}) {
		t.Error("RunCLI(version) should return true")
	}
}

func TestRunCLILimitsReturnsTrue(t *testing.T) {
	if !RunCLI([]string{"limits"}) {
		t.Error("RunCLI(limits) should return true")
	}
}

func TestRunCLIUnknownSubcommandReturnsFalse(t *testing.T) {
	if RunCLI([]string{"nonexistent-cmd"}) {
		t.Error("RunCLI(unknown) should return false")
	}
}

func TestRunCLIEmptyArgsReturnsFalse(t *testing.T) {
	if RunCLI([]string{}) {
		t.Error("RunCLI([]) should return false")
	}
}

func TestRunCLINilArgsReturnsFalse(t *testing.T) {
	if RunCLI(nil) {
		t.Error("RunCLI(nil) should return false")
	}
}
