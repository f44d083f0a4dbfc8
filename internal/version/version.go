package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// shortCommit is the length of an abbreviated revision.
const shortCommit = 7

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Current returns the build metadata of this binary.
func Current() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	if info.Commit != "none" {
		return info
	}

	if build, ok := debug.ReadBuildInfo(); ok {
		info.Commit = vcsRevision(build.Settings)
	}

	return info
}

// String renders the build metadata on one line.
func (i Info) String() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s, %s", i.Version, i.Commit, i.BuildTime, i.GoVersion)
}

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return Current().String()
}

func vcsRevision(settings []debug.BuildSetting) string {
	revision, modified := "none", false

	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > shortCommit {
				revision = revision[:shortCommit]
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}

	if modified && revision != "none" {
		revision += "-dirty"
	}

	return revision
}
