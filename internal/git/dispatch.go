package git

import (
	"context"
	"fmt"
	"sort"
)

// QueryOptions carries the optional arguments a read-only query may take.
type QueryOptions struct {
	Limit      int
	Numstat    bool
	StashIndex int
	File       string
	ConnID     string
}

type queryFunc func(ctx context.Context, s *Service, path string, opts QueryOptions) (any, error)

var queryFuncs = map[string]queryFunc{
	"log": func(ctx context.Context, s *Service, path string, opts QueryOptions) (any, error) {
		return s.Log(ctx, path, LogOptions{Limit: opts.Limit, Numstat: opts.Numstat})
	},
	"branches": func(ctx context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.Branches(ctx, path)
	},
	"tags": func(ctx context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.Tags(ctx, path)
	},
	"remote-tags": func(ctx context.Context, s *Service, path string, opts QueryOptions) (any, error) {
		return s.RemoteTags(ctx, path, opts.ConnID)
	},
	"remotes": func(ctx context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.Remotes(ctx, path)
	},
	"config": func(ctx context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.Config(ctx, path)
	},
	"global-config": func(ctx context.Context, s *Service, _ string, _ QueryOptions) (any, error) {
		return s.GlobalConfig(ctx)
	},
	"stash-show": func(ctx context.Context, s *Service, path string, opts QueryOptions) (any, error) {
		return s.StashShow(ctx, path, opts.StashIndex)
	},
	"status": func(ctx context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.Status(ctx, path)
	},
	"refs": func(ctx context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.Refs(ctx, path)
	},
	"submodules": func(ctx context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.Submodules(ctx, path)
	},
	"diff": func(ctx context.Context, s *Service, path string, opts QueryOptions) (any, error) {
		return s.DiffFile(ctx, path, opts.File)
	},
	"current-branch": func(_ context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.CurrentBranch(path)
	},
	"quick-status": func(_ context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.QuickStatus(path)
	},
	"directories": func(_ context.Context, s *Service, path string, _ QueryOptions) (any, error) {
		return s.ListDirectories(path)
	},
}

// QueryKinds lists the kinds accepted by Query.
func QueryKinds() []string {
	kinds := make([]string, 0, len(queryFuncs))
	for k := range queryFuncs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Query runs the read-only query named kind against path.
func (s *Service) Query(ctx context.Context, kind, path string, opts QueryOptions) (any, error) {
	fn, ok := queryFuncs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown query %q", ErrInvalidArgument, kind)
	}
	return fn(ctx, s, path, opts)
}

// RequiresPath reports whether the query named kind operates on a repository.
func RequiresPath(kind string) bool {
	return kind != "global-config"
}
