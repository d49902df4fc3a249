package git

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thiagokokada/gitrelay/internal/git/backend"
	"github.com/thiagokokada/gitrelay/internal/git/queue"
	"github.com/thiagokokada/gitrelay/internal/repopath"
)

var (
	ErrNoSuchPath       = repopath.ErrNoSuchPath
	ErrNotRepository    = errors.New("not a git repository")
	ErrNoIdentity       = errors.New("git user name and email are not configured")
	ErrReadDir          = errors.New("read directory failed")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStashPopConflict = errors.New("stash pop failed")
)

// StashPopError is returned when the stash taken before a destructive
// operation could not be re-applied. The stash entry is left in place.
type StashPopError struct {
	Err error
}

func (e *StashPopError) Error() string {
	return fmt.Sprintf("%v: local changes kept in stash: %v", ErrStashPopConflict, e.Err)
}

func (e *StashPopError) Unwrap() []error { return []error{ErrStashPopConflict, e.Err} }

// classify attaches a sentinel to git failures whose stderr has a known
// meaning.
func classify(err error) error {
	var exitErr *backend.ExitError
	if !errors.As(err, &exitErr) {
		return err
	}
	stderr := strings.ToLower(exitErr.Stderr)
	switch {
	case strings.Contains(stderr, "please tell me who you are"):
		return fmt.Errorf("%w: %w", ErrNoIdentity, err)
	case strings.Contains(stderr, "not a git repository"):
		return fmt.Errorf("%w: %w", ErrNotRepository, err)
	default:
		return err
	}
}

// ErrorCode maps err to the stable token reported to clients.
func ErrorCode(err error) string {
	var (
		exitErr  *backend.ExitError
		spawnErr *backend.SpawnError
		parseErr *backend.ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSuchPath):
		return "no-such-path"
	case errors.Is(err, ErrNotRepository):
		return "not-a-repository"
	case errors.Is(err, ErrNoIdentity):
		return "no-git-name-email-configured"
	case errors.Is(err, ErrReadDir):
		return "read-dir-failed"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid-argument"
	case errors.Is(err, ErrStashPopConflict):
		return "stash-pop-conflict"
	case errors.Is(err, queue.ErrTimeout):
		return "timeout"
	case errors.As(err, &spawnErr):
		return "spawn-failed"
	case errors.As(err, &parseErr):
		return "parse-error"
	case errors.As(err, &exitErr):
		return "git-error"
	default:
		return "unknown"
	}
}
