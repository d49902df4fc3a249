// Package buildinfo reports how the running binary was built.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

func settings() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return nil
	}
	m := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		m[s.Key] = s.Value
	}
	return m
}

// Version returns the module version or "dev" when unset.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return "dev"
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		return "dev"
	}
	return version
}

// Revision returns the short VCS revision, suffixed with "-dirty" for builds
// from a modified tree.
func Revision() string {
	s := settings()
	rev := s["vcs.revision"]
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && s["vcs.modified"] == "true" {
		rev += "-dirty"
	}
	return rev
}

// Tags returns the build tags recorded at compile time.
func Tags() string {
	return settings()["-tags"]
}

// VersionWithTags returns the version plus revision and tags when known.
func VersionWithTags() string {
	return format(Version(), Revision(), Tags())
}

func format(version, revision, tags string) string {
	var extra []string
	if revision != "" {
		extra = append(extra, "rev: "+revision)
	}
	if tags != "" {
		extra = append(extra, "tags: "+tags)
	}
	if len(extra) == 0 {
		return version
	}
	return version + " (" + strings.Join(extra, ", ") + ")"
}
