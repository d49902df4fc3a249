package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/thiagokokada/gitrelay/internal/repopath"
)

// RepoState is the coarse state reported by QuickStatus.
type RepoState string

const (
	RepoNoSuchPath RepoState = "no-such-path"
	RepoUninited   RepoState = "uninited"
	RepoInited     RepoState = "inited"
)

// The reads below go straight to the repository files without queueing, so
// they are snapshots that may race with a running command.

func openRepo(path string) (*gitlib.Repository, error) {
	key, err := repopath.Key(path)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(key, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gitlib.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}

// QuickStatus reports whether path exists and lies inside a repository.
func (s *Service) QuickStatus(path string) (RepoState, error) {
	if !repopath.Exists(path) {
		return RepoNoSuchPath, nil
	}
	_, err := openRepo(path)
	switch {
	case err == nil:
		return RepoInited, nil
	case errors.Is(err, ErrNotRepository):
		return RepoUninited, nil
	case errors.Is(err, ErrNoSuchPath):
		return RepoNoSuchPath, nil
	default:
		return "", err
	}
}

// CurrentBranch returns the short name HEAD points at, which may be an unborn
// branch, or the commit hash when HEAD is detached.
func (s *Service) CurrentBranch(path string) (string, error) {
	repo, err := openRepo(path)
	if err != nil {
		return "", err
	}
	ref, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("%w: read HEAD: %w", ErrNotRepository, err)
	}
	if ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short(), nil
	}
	return ref.Hash().String(), nil
}

// ListDirectories returns the absolute paths of the directories directly
// below path, sorted.
func (s *Service) ListDirectories(path string) ([]string, error) {
	if !repopath.Exists(path) {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPath, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadDir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadDir, err)
	}
	dirs := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(abs, entry.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
