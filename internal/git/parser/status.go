package parser

import (
	"fmt"
	"strconv"
	"strings"
)

type FileStatus struct {
	Name     string `json:"name"`
	OrigName string `json:"origName,omitempty"`
	IsNew    bool   `json:"isNew"`
	Staged   bool   `json:"staged"`
	Removed  bool   `json:"removed"`
	Renamed  bool   `json:"renamed"`
	Conflict bool   `json:"conflict"`
}

type StatusSummary struct {
	Branch       string       `json:"branch,omitempty"`
	Files        []FileStatus `json:"files"`
	HasStaged    bool         `json:"hasStaged"`
	HasWorktree  bool         `json:"hasWorktree"`
	HasUntracked bool         `json:"hasUntracked"`
}

// Dirty reports whether tracked files carry staged or unstaged changes.
// Untracked files do not count: `git stash push` leaves them alone.
func (s StatusSummary) Dirty() bool {
	return s.HasStaged || s.HasWorktree
}

// ParseStatus parses `git status --porcelain=v2 [--branch]` output.
func ParseStatus(out string) (StatusSummary, error) {
	res := StatusSummary{Files: []FileStatus{}}
	for _, line := range nonBlankLines(out) {
		if len(line) < 2 {
			continue
		}
		switch line[0] {
		case '#':
			if head, ok := strings.CutPrefix(line, "# branch.head "); ok {
				res.Branch = head
			}
		case '1', '2', 'u':
			file, err := parseTrackedEntry(line)
			if err != nil {
				return res, err
			}
			stagedState, worktreeState := line[2], line[3]
			if stagedState != '.' {
				res.HasStaged = true
			}
			if worktreeState != '.' && worktreeState != '?' {
				res.HasWorktree = true
			}
			res.Files = append(res.Files, file)
		case '?':
			res.HasUntracked = true
			res.Files = append(res.Files, FileStatus{Name: unquotePath(line[2:]), IsNew: true})
		default:
			// '!' ignored entries.
		}
	}
	return res, nil
}

func parseTrackedEntry(line string) (FileStatus, error) {
	// Field counts before the path for ordinary, renamed and unmerged entries.
	fieldsBeforePath := map[byte]int{'1': 8, '2': 9, 'u': 10}[line[0]]
	parts := strings.SplitN(line, " ", fieldsBeforePath+1)
	if len(parts) != fieldsBeforePath+1 || len(parts[1]) != 2 {
		return FileStatus{}, fmt.Errorf("unexpected status output line: %q", line)
	}
	x, y := parts[1][0], parts[1][1]
	file := FileStatus{
		IsNew:    x == 'A',
		Staged:   x != '.',
		Removed:  x == 'D' || y == 'D',
		Conflict: line[0] == 'u',
	}
	path := parts[fieldsBeforePath]
	if line[0] == '2' {
		file.Renamed = true
		path, file.OrigName, _ = strings.Cut(path, "\t")
		file.OrigName = unquotePath(file.OrigName)
	}
	file.Name = unquotePath(path)
	return file, nil
}

func unquotePath(p string) string {
	if len(p) >= 2 && p[0] == '"' {
		if s, err := strconv.Unquote(p); err == nil {
			return s
		}
	}
	return p
}
