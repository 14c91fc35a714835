package app

import "testing"

func TestBuildVersion(t *testing.T) {
	origVersion, origDate := Version, BuildDate
	t.Cleanup(func() {
		Version, BuildDate = origVersion, origDate
	})

	Version = "  "
	if got := BuildVersion(); got != "dev" {
		t.Fatalf("BuildVersion() = %q, want dev", got)
	}

	Version = "1.2.3"
	BuildDate = ""
	if got := BuildVersionWithDate(); got != "1.2.3" {
		t.Fatalf("BuildVersionWithDate() = %q", got)
	}

	BuildDate = "2026-08-24T10:00:00Z"
	if got := BuildVersionWithDate(); got != "1.2.3 (2026-08-24)" {
		t.Fatalf("BuildVersionWithDate() = %q", got)
	}

	BuildDate = "nightly"
	if got := BuildVersionWithDate(); got != "1.2.3 (nightly)" {
		t.Fatalf("BuildVersionWithDate() = %q", got)
	}
}
