package version

import (
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: "1", Minor: "2", Patch: "3"}
	if got := v.String(); got != "1.2.3" {
		t.Errorf("got %q", got)
	}
	v.Metadata = "dev"
	if got := v.String(); got != "1.2.3-dev" {
		t.Errorf("got %q", got)
	}
}

func TestVersionLongKeepsLinkerBuild(t *testing.T) {
	v := Version{Major: "1", Minor: "0", Patch: "0", Build: "abc123"}
	if got := v.Long(); got != "Version: 1.0.0\nBuild: abc123" {
		t.Errorf("got %q", got)
	}
	if !strings.HasPrefix(BuildInfo(), "go") {
		t.Errorf("build info does not start with the Go version: %q", BuildInfo())
	}
}
