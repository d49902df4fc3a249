package parser

import (
	"strconv"
	"strings"
)

type StashFileStat struct {
	Filename string `json:"filename"`
	Changes  int    `json:"changes"`
	Binary   bool   `json:"binary,omitempty"`
}

// ParseStashShow parses the diffstat printed by `git stash show`. The filename
// is everything before the last "|", so names may contain spaces and
// parentheses. The trailing "N files changed" summary is not a file.
func ParseStashShow(out string) ([]StashFileStat, error) {
	stats := []StashFileStat{}
	for _, line := range nonBlankLines(out) {
		sep := strings.LastIndex(line, "|")
		if sep < 0 {
			continue
		}
		stat := StashFileStat{Filename: strings.TrimSpace(line[:sep])}
		if stat.Filename == "" {
			continue
		}
		change := strings.Fields(line[sep+1:])
		if len(change) > 0 {
			if change[0] == "Bin" {
				stat.Binary = true
			} else if n, err := strconv.Atoi(change[0]); err == nil {
				stat.Changes = n
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}
