package parser

import (
	"path/filepath"
	"regexp"
	"strings"
)

var submoduleHeader = regexp.MustCompile(`^\[submodule\s+"(.*)"\]$`)

// scpLikeURL matches "user@host:path" remotes.
var scpLikeURL = regexp.MustCompile(`^[\w.-]+@([\w.-]+):(.*)$`)

type Submodule struct {
	Name                   string         `json:"name"`
	Path                   string         `json:"path,omitempty"`
	RawPath                string         `json:"rawPath,omitempty"`
	URL                    string         `json:"url,omitempty"`
	RawURL                 string         `json:"rawUrl,omitempty"`
	Update                 string         `json:"update,omitempty"`
	Branch                 string         `json:"branch,omitempty"`
	FetchRecurseSubmodules string         `json:"fetchRecurseSubmodules,omitempty"`
	Ignore                 string         `json:"ignore,omitempty"`
	Options                []SubmoduleOpt `json:"options,omitempty"`
}

// SubmoduleOpt is one key/value line of a submodule block, in file order.
type SubmoduleOpt struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParseSubmodules parses the contents of a .gitmodules file.
//
// Whitespace around keys and values is ignored and a value is everything after
// the first "=", so "path ==/x" yields "=/x". Lines outside a submodule block
// are skipped.
func ParseSubmodules(text string) ([]Submodule, error) {
	submodules := []Submodule{}
	var cur *Submodule
	for _, line := range nonBlankLines(text) {
		line = strings.TrimSpace(line)
		if m := submoduleHeader.FindStringSubmatch(line); m != nil {
			submodules = append(submodules, Submodule{Name: m[1]})
			cur = &submodules[len(submodules)-1]
			continue
		}
		if cur == nil || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		cur.Options = append(cur.Options, SubmoduleOpt{Key: key, Value: value})
		switch key {
		case "path":
			cur.RawPath = value
			if value != "" {
				cur.Path = filepath.Clean(filepath.FromSlash(value))
			}
		case "url":
			cur.RawURL = value
			cur.URL = normalizeSubmoduleURL(value)
		case "update":
			cur.Update = value
		case "branch":
			cur.Branch = value
		case "fetchRecurseSubmodules":
			cur.FetchRecurseSubmodules = value
		case "ignore":
			cur.Ignore = value
		}
	}
	return submodules, nil
}

// normalizeSubmoduleURL rewrites git:// and scp-like remotes to a browsable
// http URL.
func normalizeSubmoduleURL(raw string) string {
	if rest, ok := strings.CutPrefix(raw, "git://"); ok {
		return "http://" + rest
	}
	if m := scpLikeURL.FindStringSubmatch(raw); m != nil {
		return "http://" + m[1] + "/" + strings.TrimPrefix(m[2], "/")
	}
	return raw
}
