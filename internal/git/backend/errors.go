package backend

import (
	"fmt"
	"strings"
)

// SpawnError reports that the git process could not be started.
type SpawnError struct {
	Args []string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("git %s: spawn: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError reports a non-zero exit that was not an expected-empty case.
type ExitError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.Code)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		return fmt.Sprintf("%s: %s", msg, stderr)
	}
	return msg
}

// ParseError reports that git succeeded but its output could not be parsed.
type ParseError struct {
	Args []string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse git %s output: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
