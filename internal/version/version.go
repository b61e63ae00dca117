// Package version provides build information for the TDOA tracker tools
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables that can be set via ldflags:
//
//	go build -ldflags "-X tdoa-tracker/internal/version.GitCommit=$(git rev-parse HEAD)"
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildDate = "unknown"
	BuildUser = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string
	GitCommit string
	GitBranch string
	BuildDate string
	BuildUser string
	GoVersion string
	Platform  string
}

// GetBuildInfo returns complete build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		BuildDate: BuildDate,
		BuildUser: BuildUser,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

// GetFullVersion returns the version with the abbreviated commit when known
func GetFullVersion() string {
	if GitCommit != "unknown" && GitCommit != "" {
		return fmt.Sprintf("%s-%s", Version, shortCommit(GitCommit))
	}
	return Version
}

// GetVersionInfo returns the multi-line text printed by --version
func GetVersionInfo(appName string) string {
	info := GetBuildInfo()

	var b strings.Builder
	fmt.Fprintf(&b, "%s version %s", appName, info.Version)
	if info.GitCommit != "unknown" {
		fmt.Fprintf(&b, " (commit %s)", shortCommit(info.GitCommit))
	}
	if info.GitBranch != "unknown" {
		fmt.Fprintf(&b, " on branch %s", info.GitBranch)
	}
	if info.BuildDate != "unknown" {
		fmt.Fprintf(&b, "\nBuilt: %s", info.BuildDate)
		if info.BuildUser != "unknown" {
			fmt.Fprintf(&b, " by %s", info.BuildUser)
		}
	}
	fmt.Fprintf(&b, "\nGo: %s", info.GoVersion)
	fmt.Fprintf(&b, "\nPlatform: %s", info.Platform)
	return b.String()
}

// Banner returns the boxed title line the CLIs print on start
func Banner(title string) string {
	const width = 62
	text := fmt.Sprintf("%s %s", strings.ToUpper(title), GetFullVersion())
	n := len([]rune(text))
	if n > width {
		text = string([]rune(text)[:width])
		n = width
	}
	left := (width - n) / 2
	right := width - n - left

	var b strings.Builder
	b.WriteString("╔" + strings.Repeat("═", width) + "╗\n")
	b.WriteString("║" + strings.Repeat(" ", left) + text + strings.Repeat(" ", right) + "║\n")
	b.WriteString("╚" + strings.Repeat("═", width) + "╝\n")
	return b.String()
}
