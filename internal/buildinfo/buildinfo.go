// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

import "strings"

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/garyellow/cardbot/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/garyellow/cardbot/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/garyellow/cardbot/internal/buildinfo.BuildDate=...
var BuildDate = ""

// String renders the build metadata as "version (commit, date)", falling back
// to "dev" for unversioned builds.
func String() string {
	version := Version
	if version == "" {
		version = "dev"
	}

	var meta []string
	if Commit != "" {
		commit := Commit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		meta = append(meta, commit)
	}
	if BuildDate != "" {
		meta = append(meta, BuildDate)
	}
	if len(meta) == 0 {
		return version
	}
	return version + " (" + strings.Join(meta, ", ") + ")"
}
