package parser

import (
	"fmt"
	"strings"
)

type BranchEntry struct {
	Name    string `json:"name"`
	Current bool   `json:"current,omitempty"`
}

// ParseBranches parses `git branch` output. The checked-out branch is the one
// prefixed with "* ".
func ParseBranches(out string) ([]BranchEntry, error) {
	branches := []BranchEntry{}
	for _, line := range nonBlankLines(out) {
		current := strings.HasPrefix(line, "* ")
		name := strings.TrimSpace(strings.TrimPrefix(line, "* "))
		if name == "" {
			continue
		}
		branches = append(branches, BranchEntry{Name: name, Current: current})
	}
	return branches, nil
}

// ParseTags parses `git tag -l` output.
func ParseTags(out string) ([]string, error) {
	return names(out), nil
}

// ParseRemotes parses `git remote` output.
func ParseRemotes(out string) ([]string, error) {
	return names(out), nil
}

func names(out string) []string {
	res := []string{}
	for _, line := range nonBlankLines(out) {
		res = append(res, strings.TrimSpace(line))
	}
	return res
}

type LsRemoteEntry struct {
	SHA1 string `json:"sha1"`
	Name string `json:"name"`
}

// ParseLsRemote parses `git ls-remote` output. Peeled entries ("^{}") are
// kept as separate records.
func ParseLsRemote(out string) ([]LsRemoteEntry, error) {
	entries := []LsRemoteEntry{}
	for _, line := range nonBlankLines(out) {
		sha1, name, ok := strings.Cut(line, "\t")
		if !ok {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return nil, fmt.Errorf("unexpected ls-remote output line: %q", line)
			}
			sha1, name = fields[0], fields[1]
		}
		sha1 = strings.TrimSpace(sha1)
		name = strings.TrimSpace(name)
		if sha1 == "" || name == "" {
			return nil, fmt.Errorf("unexpected ls-remote output line: %q", line)
		}
		entries = append(entries, LsRemoteEntry{SHA1: sha1, Name: name})
	}
	return entries, nil
}

// ConfigMap holds `git config --list` output keyed by the dotted key.
type ConfigMap map[string]string

// ParseConfig parses `git config --list` output. Keys split on the first "=",
// and when a key repeats the last value wins.
func ParseConfig(out string) (ConfigMap, error) {
	cfg := ConfigMap{}
	for _, line := range nonBlankLines(out) {
		key, value, _ := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		cfg[key] = value
	}
	return cfg, nil
}
