// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

import "fmt"

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/utsbot/uts-chatbot-go/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/utsbot/uts-chatbot-go/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/utsbot/uts-chatbot-go/internal/buildinfo.BuildDate=...
var BuildDate = ""

// Release identifies the build for Sentry and logs: the version, else the
// short commit, else "dev".
func Release() string {
	switch {
	case Version != "":
		return Version
	case len(Commit) >= 7:
		return Commit[:7]
	case Commit != "":
		return Commit
	default:
		return "dev"
	}
}

// String is the one-line description printed by version commands.
func String() string {
	s := fmt.Sprintf("uts-chatbot %s", Release())
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return s
}
