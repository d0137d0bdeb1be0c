// Package version reports the build of the running binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const unknown = "unknown"

// Set via -ldflags "-X github.com/smazurov/framescale/internal/version.Version=..." in release builds.
var (
	Version   = "dev"
	GitCommit = unknown
	BuildDate = unknown
	BuildID   = unknown
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
	Modified  bool   `json:"modified"`
}

// Get returns version and build information. Commit and date missing from
// ldflags are taken from the VCS stamp that `go build` embeds.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildSettings(&info, bi.Settings)
	}
	return info
}

func applyBuildSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == unknown {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == unknown {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

// String returns the one-line version banner printed by --version.
func String() string {
	return Get().String()
}

// String formats info as "framescale <version> (<commit>, built <date>)".
func (i Info) String() string {
	if i.GitCommit == unknown {
		return "framescale " + i.Version
	}
	commit := i.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("framescale %s (%s, built %s)", i.Version, commit, i.BuildDate)
}
