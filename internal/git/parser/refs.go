package parser

import (
	"fmt"
	"strings"
)

type RefKind uint8

const (
	RefKindBranch RefKind = iota
	RefKindRemoteBranch
	RefKindTag
)

func (k RefKind) String() string {
	switch k {
	case RefKindBranch:
		return "branch"
	case RefKindRemoteBranch:
		return "remote"
	case RefKindTag:
		return "tag"
	default:
		return "unknown"
	}
}

func (k RefKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Ref struct {
	Hash string  `json:"hash"`
	Kind RefKind `json:"kind"`
	Name string  `json:"name"` // short name: main, origin/main, v1
}

// ParseShowRef parses `git show-ref --dereference` output. Annotated tags
// resolve to the commit they point at; symbolic remote HEADs are skipped.
func ParseShowRef(out string) ([]Ref, error) {
	type refEntry struct {
		hash string
		ref  string
	}

	peeledByTagRef := map[string]string{}
	var entries []refEntry

	for _, line := range nonBlankLines(out) {
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("unexpected show-ref output line: %q", line)
		}
		hash, refName := parts[0], parts[1]
		if base, ok := strings.CutSuffix(refName, "^{}"); ok {
			if base != "" {
				peeledByTagRef[base] = hash
			}
			continue
		}
		entries = append(entries, refEntry{hash: hash, ref: refName})
	}

	refs := []Ref{}
	for _, entry := range entries {
		switch {
		case strings.HasPrefix(entry.ref, "refs/tags/"):
			short := strings.TrimPrefix(entry.ref, "refs/tags/")
			if short == "" {
				continue
			}
			hash := entry.hash
			if peeled, ok := peeledByTagRef[entry.ref]; ok {
				hash = peeled
			}
			refs = append(refs, Ref{Hash: hash, Kind: RefKindTag, Name: short})
		case strings.HasPrefix(entry.ref, "refs/heads/"):
			if short := strings.TrimPrefix(entry.ref, "refs/heads/"); short != "" {
				refs = append(refs, Ref{Hash: entry.hash, Kind: RefKindBranch, Name: short})
			}
		case strings.HasPrefix(entry.ref, "refs/remotes/"):
			short := strings.TrimPrefix(entry.ref, "refs/remotes/")
			if short == "" || strings.HasSuffix(short, "/HEAD") {
				continue
			}
			refs = append(refs, Ref{Hash: entry.hash, Kind: RefKindRemoteBranch, Name: short})
		}
	}
	return refs, nil
}
