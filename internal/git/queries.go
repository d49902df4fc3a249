package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/thiagokokada/gitrelay/internal/git/backend"
	"github.com/thiagokokada/gitrelay/internal/git/parser"
)

type LogOptions struct {
	// Limit caps the number of commits. Zero means no limit.
	Limit int
	// Numstat fills LogEntry.FileLineDiffs with per-file line counts.
	Numstat bool
}

// Log returns commits from all refs, newest first. A repository without
// commits yields an empty log.
func (s *Service) Log(ctx context.Context, path string, opts LogOptions) ([]parser.LogEntry, error) {
	c := call{cmd: CmdLog}
	if opts.Limit > 0 {
		c.args = append(c.args, "--max-count="+strconv.Itoa(opts.Limit))
	}
	if opts.Numstat {
		c.args = append(c.args, "--numstat")
	}
	return query(ctx, s, path, c, parser.ParseLog)
}

func (s *Service) Branches(ctx context.Context, path string) ([]parser.BranchEntry, error) {
	return query(ctx, s, path, call{cmd: CmdBranches}, parser.ParseBranches)
}

func (s *Service) Tags(ctx context.Context, path string) ([]string, error) {
	return query(ctx, s, path, call{cmd: CmdTags}, parser.ParseTags)
}

// RemoteTags lists the tags of the default remote. Credential prompts are
// relayed to connID.
func (s *Service) RemoteTags(ctx context.Context, path, connID string) ([]parser.LsRemoteEntry, error) {
	return query(ctx, s, path, call{cmd: CmdRemoteTags, connID: connID}, parser.ParseLsRemote)
}

func (s *Service) Remotes(ctx context.Context, path string) ([]string, error) {
	return query(ctx, s, path, call{cmd: CmdRemotes}, parser.ParseRemotes)
}

// Config returns the effective configuration of the repository at path.
func (s *Service) Config(ctx context.Context, path string) (parser.ConfigMap, error) {
	return query(ctx, s, path, call{cmd: CmdConfig}, parser.ParseConfig)
}

// GlobalConfig returns the user's global configuration. It touches no
// repository and is not queued.
func (s *Service) GlobalConfig(ctx context.Context) (parser.ConfigMap, error) {
	t := s.task("", call{cmd: CmdGlobalConfig})
	return backend.RunParsed(ctx, s.runner, t, parser.ParseConfig)
}

// StashShow summarizes the files recorded in stash@{index}.
func (s *Service) StashShow(ctx context.Context, path string, index int) ([]parser.StashFileStat, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: negative stash index %d", ErrInvalidArgument, index)
	}
	c := call{cmd: CmdStashShow, args: []string{fmt.Sprintf("stash@{%d}", index)}}
	return query(ctx, s, path, c, parser.ParseStashShow)
}

func (s *Service) Status(ctx context.Context, path string) (parser.StatusSummary, error) {
	return query(ctx, s, path, call{cmd: CmdStatus}, parser.ParseStatus)
}

func (s *Service) Refs(ctx context.Context, path string) ([]parser.Ref, error) {
	return query(ctx, s, path, call{cmd: CmdRefs}, parser.ParseShowRef)
}

// Submodules reads the repository's .gitmodules. A repository without one has
// no submodules.
func (s *Service) Submodules(ctx context.Context, path string) ([]parser.Submodule, error) {
	var res []parser.Submodule
	err := s.serialize(ctx, path, 0, func(sl Slot) error {
		text, err := os.ReadFile(filepath.Join(sl.Path(), ".gitmodules"))
		if errors.Is(err, fs.ErrNotExist) {
			res = []parser.Submodule{}
			return nil
		}
		if err != nil {
			return err
		}
		res, err = parser.ParseSubmodules(string(text))
		return err
	})
	return res, err
}
