package git

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Init creates a repository in the existing directory path.
func (s *Service) Init(ctx context.Context, path string, bare bool) error {
	c := call{cmd: CmdInit}
	if bare {
		c.args = []string{"--bare"}
	}
	return s.exec(ctx, path, c)
}

// Clone clones url into dest, relative to the directory path.
func (s *Service) Clone(ctx context.Context, path, connID, url, dest string) error {
	if err := requireArg("url", url); err != nil {
		return err
	}
	if err := requireArg("destination", dest); err != nil {
		return err
	}
	return s.exec(ctx, path, call{cmd: CmdClone, connID: connID, args: []string{"--", url, dest}})
}

type CommitOptions struct {
	Message string
	// Files are staged (additions, modifications and deletions) before
	// committing. Empty commits whatever is already staged.
	Files []string
	Amend bool
}

// Commit records a commit. The message is passed on stdin so it is never
// subject to argument parsing.
func (s *Service) Commit(ctx context.Context, path string, opts CommitOptions) error {
	if strings.TrimSpace(opts.Message) == "" {
		return fmt.Errorf("%w: commit message not specified", ErrInvalidArgument)
	}
	if err := checkFiles(opts.Files); err != nil {
		return err
	}
	return s.serialize(ctx, path, changeBoth, func(sl Slot) error {
		if len(opts.Files) > 0 {
			if _, err := sl.Run(CmdAdd, opts.Files...); err != nil {
				return err
			}
		}
		c := call{cmd: CmdCommit, stdin: opts.Message}
		if opts.Amend {
			c.args = []string{"--amend"}
		}
		_, err := sl.run(c)
		return err
	})
}

// Fetch fetches from the default remote, or only ref from origin when set.
func (s *Service) Fetch(ctx context.Context, path, connID, ref string) error {
	c := call{cmd: CmdFetch, connID: connID}
	if ref != "" {
		if err := requireArg("ref", ref); err != nil {
			return err
		}
		c.args = []string{"origin", ref}
	}
	return s.exec(ctx, path, c)
}

type PushOptions struct {
	// Remote defaults to origin.
	Remote string
	// Local defaults to HEAD.
	Local string
	// RemoteBranch, when set, is the destination branch name.
	RemoteBranch string
	Force        bool
}

func (s *Service) Push(ctx context.Context, path, connID string, opts PushOptions) error {
	remote := cmp.Or(opts.Remote, "origin")
	local := cmp.Or(opts.Local, "HEAD")
	if err := requireArg("remote", remote); err != nil {
		return err
	}
	if err := requireArg("local branch", local); err != nil {
		return err
	}
	refspec := local
	if opts.RemoteBranch != "" {
		if err := requireArg("remote branch", opts.RemoteBranch); err != nil {
			return err
		}
		refspec += ":refs/heads/" + opts.RemoteBranch
	}
	var args []string
	if opts.Force {
		args = append(args, "--force-with-lease")
	}
	args = append(args, remote, refspec)
	return s.exec(ctx, path, call{cmd: CmdPush, connID: connID, args: args})
}

func (s *Service) CreateBranch(ctx context.Context, path, name, startPoint string) error {
	return s.createRef(ctx, path, CmdCreateBranch, "branch", name, startPoint)
}

func (s *Service) DeleteBranch(ctx context.Context, path, name string) error {
	if err := requireArg("branch", name); err != nil {
		return err
	}
	return s.exec(ctx, path, call{cmd: CmdDeleteBranch, args: []string{name}})
}

func (s *Service) CreateTag(ctx context.Context, path, name, startPoint string) error {
	return s.createRef(ctx, path, CmdCreateTag, "tag", name, startPoint)
}

func (s *Service) DeleteTag(ctx context.Context, path, name string) error {
	if err := requireArg("tag", name); err != nil {
		return err
	}
	return s.exec(ctx, path, call{cmd: CmdDeleteTag, args: []string{name}})
}

// DeleteRemoteTag removes tag name from remote (origin when empty).
func (s *Service) DeleteRemoteTag(ctx context.Context, path, connID, remote, name string) error {
	remote = cmp.Or(remote, "origin")
	if err := requireArg("remote", remote); err != nil {
		return err
	}
	if err := requireArg("tag", name); err != nil {
		return err
	}
	return s.exec(ctx, path, call{cmd: CmdDeleteRemoteTag, connID: connID, args: []string{remote, ":refs/tags/" + name}})
}

func (s *Service) createRef(ctx context.Context, path string, cmd Command, what, name, startPoint string) error {
	if err := requireArg(what, name); err != nil {
		return err
	}
	args := []string{name}
	if startPoint != "" {
		if err := requireArg("start point", startPoint); err != nil {
			return err
		}
		args = append(args, startPoint)
	}
	return s.exec(ctx, path, call{cmd: cmd, args: args})
}

func (s *Service) Merge(ctx context.Context, path, with string, noFF bool) error {
	if err := requireArg("merge source", with); err != nil {
		return err
	}
	var args []string
	if noFF {
		args = append(args, "--no-ff")
	}
	return s.exec(ctx, path, call{cmd: CmdMerge, args: append(args, with)})
}

// MergeContinue concludes a merge whose conflicts were resolved. An empty
// message keeps the one git prepared.
func (s *Service) MergeContinue(ctx context.Context, path, message string) error {
	if strings.TrimSpace(message) == "" {
		return s.exec(ctx, path, call{cmd: CmdMergeContinue})
	}
	return s.exec(ctx, path, call{cmd: CmdCommit, stdin: message})
}

func (s *Service) MergeAbort(ctx context.Context, path string) error {
	return s.exec(ctx, path, call{cmd: CmdMergeAbort})
}

func (s *Service) Rebase(ctx context.Context, path, onto string) error {
	if err := requireArg("rebase target", onto); err != nil {
		return err
	}
	return s.exec(ctx, path, call{cmd: CmdRebase, args: []string{onto}})
}

func (s *Service) RebaseContinue(ctx context.Context, path string) error {
	return s.exec(ctx, path, call{cmd: CmdRebaseContinue})
}

func (s *Service) RebaseAbort(ctx context.Context, path string) error {
	return s.exec(ctx, path, call{cmd: CmdRebaseAbort})
}

// Discard throws away local changes to files, or to the whole working tree
// (untracked files included) when files is empty.
func (s *Service) Discard(ctx context.Context, path string, files []string) error {
	if err := checkFiles(files); err != nil {
		return err
	}
	return s.serialize(ctx, path, changeWorkingTree, func(sl Slot) error {
		if len(files) == 0 {
			if _, err := sl.Run(CmdReset, "HEAD"); err != nil {
				return err
			}
			_, err := sl.Run(CmdClean)
			return err
		}
		status, err := statusInSlot(sl)
		if err != nil {
			return err
		}
		untracked := map[string]bool{}
		stagedNew := map[string]bool{}
		for _, f := range status.Files {
			switch {
			case f.IsNew && !f.Staged:
				untracked[f.Name] = true
			case f.IsNew:
				stagedNew[f.Name] = true
			}
		}
		var errs []error
		var restore, remove []string
		for _, file := range files {
			name := filepath.ToSlash(file)
			switch {
			case untracked[name]:
				if err := os.Remove(filepath.Join(sl.Path(), file)); err != nil {
					errs = append(errs, err)
				}
			case stagedNew[name]:
				remove = append(remove, file)
			default:
				restore = append(restore, file)
			}
		}
		if len(remove) > 0 {
			if _, err := sl.Run(CmdRemoveFiles, remove...); err != nil {
				errs = append(errs, err)
			}
		}
		if len(restore) > 0 {
			if _, err := sl.Run(CmdCheckoutFiles, restore...); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Resolve marks conflicted files as resolved.
func (s *Service) Resolve(ctx context.Context, path string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no files to resolve", ErrInvalidArgument)
	}
	if err := checkFiles(files); err != nil {
		return err
	}
	return s.exec(ctx, path, call{cmd: CmdAdd, args: files})
}

func (s *Service) AddSubmodule(ctx context.Context, path, connID, url, subPath string) error {
	if err := requireArg("submodule url", url); err != nil {
		return err
	}
	if err := checkFiles([]string{subPath}); err != nil {
		return err
	}
	return s.exec(ctx, path, call{cmd: CmdSubmoduleAdd, connID: connID, args: []string{"--", url, subPath}})
}

// checkFiles requires every file to be a non-empty path inside the
// repository.
func checkFiles(files []string) error {
	for _, f := range files {
		if f == "" || !filepath.IsLocal(f) {
			return fmt.Errorf("%w: file %q is outside the repository", ErrInvalidArgument, f)
		}
	}
	return nil
}
