package backend

import (
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// minGitVersion is the oldest git supporting "stash push" and
// "status --porcelain=v2" as the command table uses them.
var minGitVersion = [3]int{2, 23, 0}

// versionNumber matches "2.39.3" in "git version 2.39.3 (Apple Git-146)" or
// "git version 2.39.3.windows.1". The patch level is optional.
var versionNumber = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

func parseVersion(out string) ([3]int, bool) {
	m := versionNumber.FindStringSubmatch(out)
	if m == nil {
		return [3]int{}, false
	}
	var v [3]int
	for i, part := range m[1:] {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return [3]int{}, false
		}
		v[i] = n
	}
	return v, true
}

func formatVersion(v [3]int) string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

func checkVersion(out string) error {
	got, ok := parseVersion(out)
	if !ok {
		return fmt.Errorf("unable to parse git version output: %q", strings.TrimSpace(out))
	}
	if slices.Compare(got[:], minGitVersion[:]) < 0 {
		return fmt.Errorf("git %s is too old; gitrelay requires git >= %s", formatVersion(got), formatVersion(minGitVersion))
	}
	return nil
}

// EnsureMinVersion runs `git --version` once per runner and fails every later
// call the same way when the binary is missing or too old.
func (r *Runner) EnsureMinVersion() error {
	r.versionOnce.Do(func() {
		out, err := exec.Command(r.binary(), "--version").CombinedOutput()
		if err != nil {
			if msg := strings.TrimSpace(string(out)); msg != "" {
				r.versionErr = fmt.Errorf("git --version: %v: %s", err, msg)
			} else {
				r.versionErr = fmt.Errorf("git --version: %w", err)
			}
			return
		}
		r.versionErr = checkVersion(string(out))
	})
	return r.versionErr
}
