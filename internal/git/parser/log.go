package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// defaultGitDate is git's --date=default layout.
const defaultGitDate = "Mon Jan 2 15:04:05 2006 -0700"

type LogEntry struct {
	Sha1           string         `json:"sha1"`
	Parents        []string       `json:"parents"`
	Refs           []string       `json:"refs"`
	AuthorName     string         `json:"authorName"`
	AuthorEmail    string         `json:"authorEmail"`
	AuthorDate     time.Time      `json:"authorDate"`
	CommitterName  string         `json:"committerName"`
	CommitterEmail string         `json:"committerEmail"`
	CommitDate     time.Time      `json:"commitDate"`
	Message        string         `json:"message"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	FileLineDiffs  []FileLineDiff `json:"fileLineDiffs,omitempty"`
}

// FileLineDiff is one --numstat line. Added and Removed are -1 for binary
// files.
type FileLineDiff struct {
	Added    int    `json:"added"`
	Removed  int    `json:"removed"`
	Filename string `json:"filename"`
}

// ParseLog parses the output of
//
//	git log --decorate=full --pretty=fuller --parents [--numstat]
//
// Commits with no decoration get an empty, non-nil Refs slice.
func ParseLog(out string) ([]LogEntry, error) {
	entries := []LogEntry{}
	var cur *LogEntry
	var message []string
	inMessage := false

	flush := func() {
		if cur == nil {
			return
		}
		cur.Message = strings.Trim(strings.Join(message, "\n"), "\n")
		cur.Title, cur.Body, _ = strings.Cut(cur.Message, "\n")
		cur.Body = strings.TrimLeft(cur.Body, "\n")
		entries = append(entries, *cur)
		cur = nil
		message = nil
	}

	for _, rawLine := range strings.Split(out, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		if rest, ok := strings.CutPrefix(line, "commit "); ok {
			flush()
			entry, err := parseCommitLine(rest)
			if err != nil {
				return nil, err
			}
			cur = &entry
			inMessage = false
			continue
		}
		if cur == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, fmt.Errorf("unexpected log output before first commit: %q", line)
		}
		if !inMessage {
			if line == "" {
				inMessage = true
				continue
			}
			if err := parseLogHeader(cur, line); err != nil {
				return nil, err
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "    "):
			message = append(message, line[4:])
		case line == "":
			message = append(message, "")
		default:
			diff, ok := parseNumstatLine(line)
			if !ok {
				return nil, fmt.Errorf("unexpected log output line: %q", line)
			}
			cur.FileLineDiffs = append(cur.FileLineDiffs, diff)
		}
	}
	flush()
	return entries, nil
}

// parseCommitLine parses "<sha> <parent>... (<decorations>)".
func parseCommitLine(rest string) (LogEntry, error) {
	entry := LogEntry{Parents: []string{}, Refs: []string{}}
	hashes := rest
	if open := strings.Index(rest, "("); open >= 0 {
		hashes = rest[:open]
		entry.Refs = parseDecorations(rest[open:])
	}
	fields := strings.Fields(hashes)
	if len(fields) == 0 {
		return entry, fmt.Errorf("commit line without hash: %q", rest)
	}
	entry.Sha1 = fields[0]
	entry.Parents = append(entry.Parents, fields[1:]...)
	return entry, nil
}

// parseDecorations splits "(a, b -> c, tag: d)" into its ref names. Only the
// outermost parentheses are stripped; ref names never contain spaces, so
// separators are the only structure and any other parenthesis is part of a
// name.
func parseDecorations(s string) []string {
	refs := []string{}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	if end := strings.LastIndex(s, ")"); end >= 0 {
		s = s[:end]
	}
	for _, part := range strings.Split(s, ", ") {
		for _, name := range strings.Split(part, " -> ") {
			name = strings.TrimPrefix(strings.TrimSpace(name), "tag: ")
			if name == "" {
				continue
			}
			refs = append(refs, name)
		}
	}
	return refs
}

func parseLogHeader(entry *LogEntry, line string) error {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return fmt.Errorf("unexpected log header line: %q", line)
	}
	value = strings.TrimSpace(value)
	switch key {
	case "Author":
		entry.AuthorName, entry.AuthorEmail = splitIdent(value)
	case "Commit":
		entry.CommitterName, entry.CommitterEmail = splitIdent(value)
	case "AuthorDate":
		entry.AuthorDate = parseGitDate(value)
	case "CommitDate":
		entry.CommitDate = parseGitDate(value)
	default:
		// Merge:, Date: and other headers carry nothing we keep.
	}
	return nil
}

func splitIdent(s string) (name, email string) {
	open := strings.LastIndex(s, "<")
	end := strings.LastIndex(s, ">")
	if open < 0 || end < open {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:open]), s[open+1 : end]
}

func parseGitDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, defaultGitDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseNumstatLine(line string) (FileLineDiff, bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return FileLineDiff{}, false
	}
	added, okAdded := numstatCount(parts[0])
	removed, okRemoved := numstatCount(parts[1])
	if !okAdded || !okRemoved {
		return FileLineDiff{}, false
	}
	return FileLineDiff{Added: added, Removed: removed, Filename: parts[2]}, true
}

func numstatCount(s string) (int, bool) {
	if s == "-" {
		return -1, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
