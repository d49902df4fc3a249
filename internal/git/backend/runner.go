package backend

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"
)

// Task describes one git invocation.
type Task struct {
	Args []string
	Dir  string
	// Stdin, when non-empty, is written to the process and then closed.
	Stdin string
	// EmptyOn lists stderr fragments that turn a failing exit into an empty
	// successful result, e.g. "fatal: bad default revision 'HEAD'" on a
	// repository without commits.
	EmptyOn []string
	// EmptyOnExit lists exit codes that count as an empty result when
	// stderr is blank, e.g. 1 for `git show-ref` without any refs.
	EmptyOnExit []int
	Env         []string
}

type Output struct {
	Stdout string
	Stderr string
	// Empty is set when the process failed with an expected-empty condition.
	Empty bool
}

// Runner spawns git processes. The zero value runs "git" from PATH.
type Runner struct {
	Binary string
	Env    []string

	versionOnce sync.Once
	versionErr  error
}

func NewRunner(binary string, env ...string) *Runner {
	return &Runner{Binary: binary, Env: env}
}

func (r *Runner) binary() string {
	if r.Binary == "" {
		return "git"
	}
	return r.Binary
}

// Run executes t and waits for the process to exit. The context is only
// consulted before the process starts: once git runs it is never killed, so
// a half-applied mutation cannot be left behind.
func (r *Runner) Run(ctx context.Context, t Task) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if err := r.EnsureMinVersion(); err != nil {
		return Output{}, &SpawnError{Args: t.Args, Err: err}
	}

	cmd := exec.Command(r.binary(), t.Args...)
	cmd.Dir = t.Dir
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Env = append(cmd.Env, r.Env...)
	cmd.Env = append(cmd.Env, t.Env...)
	if t.Stdin != "" {
		cmd.Stdin = strings.NewReader(t.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	slog.Debug("git",
		slog.String("dir", t.Dir),
		slog.Any("args", t.Args),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil),
	)
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return Output{}, &SpawnError{Args: t.Args, Err: err}
	}
	if strings.TrimSpace(out.Stderr) == "" && slices.Contains(t.EmptyOnExit, exitErr.ExitCode()) {
		return Output{Empty: true}, nil
	}
	for _, pattern := range t.EmptyOn {
		if pattern != "" && strings.Contains(out.Stderr, pattern) {
			slog.Debug("git expected-empty result", slog.String("pattern", pattern))
			return Output{Stderr: out.Stderr, Empty: true}, nil
		}
	}
	return out, &ExitError{Args: t.Args, Code: exitErr.ExitCode(), Stderr: out.Stderr}
}

// RunParsed runs t and applies parse to stdout. The parser is only invoked
// on success; an expected-empty result parses the empty string.
func RunParsed[T any](ctx context.Context, r *Runner, t Task, parse func(string) (T, error)) (T, error) {
	var zero T
	out, err := r.Run(ctx, t)
	if err != nil {
		return zero, err
	}
	res, err := parse(out.Stdout)
	if err != nil {
		return zero, &ParseError{Args: t.Args, Err: err}
	}
	return res, nil
}
