/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
// Package version provides version information for the hotswap CLI.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Set at build time via -ldflags "-X bennypowers.dev/hotswap/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitTag    = "unknown"
	BuildTime = "unknown"
	GitDirty  = "" // "dirty" for builds from a modified tree
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	GitTag    string `json:"gitTag"`
	BuildTime string `json:"buildTime"`
	Dirty     bool   `json:"dirty"`
}

// GetVersion prefers the ldflags version, then the module version recorded
// by `go install`, then one derived from the git tag and commit.
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	if GitTag == "unknown" || GitCommit == "unknown" {
		return "dev"
	}

	v := GitTag
	if commit := shortCommit(GitCommit); commit != "" && !strings.HasSuffix(GitTag, commit) {
		v += "-" + commit
	}
	if GitDirty == "dirty" {
		v += "-dirty"
	}
	return v
}

// GetFullVersion appends the commit to GetVersion when it is known.
func GetFullVersion() string {
	if GitCommit == "unknown" {
		return GetVersion()
	}
	return fmt.Sprintf("%s (commit: %s)", GetVersion(), GitCommit)
}

// GetBuildInfo collects the build metadata.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   GetVersion(),
		GitCommit: GitCommit,
		GitTag:    GitTag,
		BuildTime: BuildTime,
		Dirty:     GitDirty == "dirty",
	}
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
