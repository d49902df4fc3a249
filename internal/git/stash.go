package git

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/thiagokokada/gitrelay/internal/git/backend"
	"github.com/thiagokokada/gitrelay/internal/git/parser"
)

// StashWrap runs task with local changes stashed away. Inside a single
// repository slot it checks the status, stashes when tracked files are
// modified, runs task and pops the stash again on every exit path, panics
// included. A failed pop surfaces as a *StashPopError joined with the task's
// own error.
func (s *Service) StashWrap(ctx context.Context, path string, task func(Slot) error) error {
	return s.serialize(ctx, path, changeBoth, func(sl Slot) error {
		return s.stashWrapInSlot(sl, task)
	})
}

func (s *Service) stashWrapInSlot(sl Slot, task func(Slot) error) (err error) {
	stashed, err := s.stashIfDirty(sl)
	if err != nil {
		return err
	}
	if stashed {
		defer func() {
			if _, popErr := sl.Run(CmdStashPop); popErr != nil {
				slog.Error("stash pop failed",
					slog.String("path", sl.Path()),
					slog.Any("error", popErr),
				)
				err = errors.Join(err, &StashPopError{Err: popErr})
			}
		}()
	}
	return task(sl)
}

func (s *Service) stashIfDirty(sl Slot) (bool, error) {
	status, err := statusInSlot(sl)
	if err != nil {
		return false, err
	}
	if !status.Dirty() {
		return false, nil
	}
	out, err := sl.Run(CmdStashPush, s.stashMessage)
	if err != nil {
		return false, err
	}
	if strings.Contains(out.Stdout+out.Stderr, "No local changes to save") {
		return false, nil
	}
	slog.Debug("stashed local changes", slog.String("path", sl.Path()))
	return true, nil
}

// Reset moves the current branch to "to", discarding nothing: local changes
// are stashed around the hard reset.
func (s *Service) Reset(ctx context.Context, path, to string) error {
	if err := requireArg("reset target", to); err != nil {
		return err
	}
	return s.StashWrap(ctx, path, func(sl Slot) error {
		_, err := sl.Run(CmdReset, to)
		return err
	})
}

func (s *Service) Checkout(ctx context.Context, path, name string) error {
	if err := requireArg("checkout target", name); err != nil {
		return err
	}
	return s.StashWrap(ctx, path, func(sl Slot) error {
		_, err := sl.Run(CmdCheckout, name)
		return err
	})
}

func (s *Service) CherryPick(ctx context.Context, path, name string) error {
	if err := requireArg("commit", name); err != nil {
		return err
	}
	return s.StashWrap(ctx, path, func(sl Slot) error {
		_, err := sl.Run(CmdCherryPick, name)
		return err
	})
}

func statusInSlot(sl Slot) (parser.StatusSummary, error) {
	out, err := sl.Run(CmdStatus)
	if err != nil {
		return parser.StatusSummary{}, err
	}
	status, err := parser.ParseStatus(out.Stdout)
	if err != nil {
		return status, &backend.ParseError{Args: CmdStatus.spec().args, Err: err}
	}
	return status, nil
}
