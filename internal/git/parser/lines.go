package parser

import "strings"

// nonBlankLines splits out on newlines, drops carriage returns and skips
// lines that are empty after trimming.
func nonBlankLines(out string) []string {
	var lines []string
	for _, rawLine := range strings.Split(out, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
