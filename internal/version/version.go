// Package version carries the build identity stamped into the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden at build time via
// -ldflags "-X github.com/Nakildias/sc0710/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

// Info is the full build identity served by the control API.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

// Get assembles the build identity. When the ldflags were not set it
// falls back to the VCS stamp the toolchain embeds in module builds.
func Get() Info {
	commit, date := GitCommit, BuildDate
	if commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					commit = s.Value
				case "vcs.time":
					if date == "" {
						date = s.Value
					}
				}
			}
		}
	}
	return Info{
		Version:   Version,
		GitCommit: commit,
		BuildDate: date,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns the version, suffixed with the short commit when one
// is known.
func String() string {
	if c := Get().GitCommit; len(c) >= 7 {
		return Version + "+" + c[:7]
	}
	return Version
}
