// Package version holds the version of tinydbg.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Version represents the current version of tinydbg.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// TinydbgVersion is the current version of tinydbg.
var TinydbgVersion = Version{
	Major: "1", Minor: "0", Patch: "0", Metadata: "",
	Build: "$Id$",
}

// String returns the version number, as printed in the console banner.
func (v Version) String() string {
	ver := fmt.Sprintf("%s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return ver
}

// Long returns the version number and the build it comes from.
func (v Version) Long() string {
	fixBuild(&v)
	return fmt.Sprintf("Version: %s\nBuild: %s", v.String(), v.Build)
}

// BuildInfo returns the Go version and the modules tinydbg was built
// with.
func BuildInfo() string {
	return fmt.Sprintf("%s\n%s", runtime.Version(), moduleBuildInfo())
}

func fixBuild(v *Version) {
	// keep a Build set by the linker, replace the unexpanded ident
	if !strings.HasPrefix(v.Build, "$Id") {
		return
	}
	if rev := vcsRevision(); rev != "" {
		v.Build = rev
	}
}
