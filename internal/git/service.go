package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/thiagokokada/gitrelay/internal/git/backend"
	"github.com/thiagokokada/gitrelay/internal/git/queue"
	"github.com/thiagokokada/gitrelay/internal/repopath"
)

const (
	DefaultQueueTimeout = 2 * time.Minute
	DefaultStashMessage = "gitrelay autostash"
)

// Notifier is told about repositories whose state a command may have
// changed. Paths are canonical repository keys.
type Notifier interface {
	WorkingTreeChanged(path string)
	GitDirectoryChanged(path string)
}

// CredentialHelper returns the credential.helper value that routes git's
// credential prompts to connID. An empty result leaves git's own helpers in
// charge.
type CredentialHelper func(connID string) string

// Service runs git commands against any number of working trees. Commands
// touching the same repository are serialized.
type Service struct {
	runner           *backend.Runner
	queue            *queue.Serializer
	notifier         Notifier
	credentialHelper CredentialHelper
	queueTimeout     time.Duration
	stashMessage     string
}

type Option func(*Service)

func WithRunner(r *backend.Runner) Option {
	return func(s *Service) { s.runner = r }
}

func WithSerializer(q *queue.Serializer) Option {
	return func(s *Service) { s.queue = q }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithCredentialHelper(h CredentialHelper) Option {
	return func(s *Service) { s.credentialHelper = h }
}

// WithQueueTimeout bounds how long a command may wait for its repository.
// Zero waits forever.
func WithQueueTimeout(d time.Duration) Option {
	return func(s *Service) { s.queueTimeout = d }
}

func WithStashMessage(msg string) Option {
	return func(s *Service) { s.stashMessage = msg }
}

func New(opts ...Option) *Service {
	s := &Service{queueTimeout: DefaultQueueTimeout, stashMessage: DefaultStashMessage}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = backend.NewRunner("")
	}
	if s.queue == nil {
		s.queue = queue.New()
	}
	return s
}

// call is one invocation of a Command with its per-request arguments.
type call struct {
	cmd    Command
	args   []string
	stdin  string
	connID string
}

func (s *Service) task(key string, c call) backend.Task {
	spec := c.cmd.spec()
	var args []string
	if spec.credentials && s.credentialHelper != nil && c.connID != "" {
		if helper := s.credentialHelper(c.connID); helper != "" {
			// An empty value resets the helper list so ours is the only one.
			args = append(args, "-c", "credential.helper=", "-c", "credential.helper="+helper)
		}
	}
	args = append(args, spec.args...)
	args = append(args, c.args...)
	return backend.Task{
		Args:        args,
		Dir:         key,
		Stdin:       c.stdin,
		EmptyOn:     spec.emptyOn,
		EmptyOnExit: spec.emptyOnExit,
		Env:         spec.env,
	}
}

// Slot gives a unit of work running inside a repository's queue slot access
// to git without queueing again.
type Slot struct {
	s   *Service
	ctx context.Context
	key string
}

// Path is the canonical repository path the slot belongs to.
func (sl Slot) Path() string { return sl.key }

func (sl Slot) Run(cmd Command, args ...string) (backend.Output, error) {
	return sl.run(call{cmd: cmd, args: args})
}

func (sl Slot) run(c call) (backend.Output, error) {
	out, err := sl.s.runner.Run(sl.ctx, sl.s.task(sl.key, c))
	return out, classify(err)
}

// serialize validates path, waits for the repository slot and runs fn in it.
// The queue timeout only applies while waiting; once fn starts it runs to
// completion. Observers are notified after fn returns, whatever its result.
func (s *Service) serialize(ctx context.Context, path string, changes change, fn func(Slot) error) error {
	key, err := repopath.Key(path)
	if err != nil {
		return err
	}
	waitCtx := ctx
	if s.queueTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.queueTimeout)
		defer cancel()
	}
	err = s.queue.Do(waitCtx, key, func() error {
		return fn(Slot{s: s, ctx: context.WithoutCancel(ctx), key: key})
	})
	if errors.Is(err, queue.ErrTimeout) {
		slog.Error("repository queue timeout", slog.String("path", key))
		return err
	}
	s.notify(key, changes)
	return err
}

func (s *Service) notify(key string, changes change) {
	if s.notifier == nil {
		return
	}
	if changes&changeGitDir != 0 {
		s.notifier.GitDirectoryChanged(key)
	}
	if changes&changeWorkingTree != 0 {
		s.notifier.WorkingTreeChanged(key)
	}
}

// exec runs a single command in the repository slot.
func (s *Service) exec(ctx context.Context, path string, c call) error {
	return s.serialize(ctx, path, c.cmd.spec().changes, func(sl Slot) error {
		_, err := sl.run(c)
		return err
	})
}

// query runs a single command in the repository slot and parses its output.
func query[T any](ctx context.Context, s *Service, path string, c call, parse func(string) (T, error)) (T, error) {
	var res T
	err := s.serialize(ctx, path, c.cmd.spec().changes, func(sl Slot) error {
		var err error
		res, err = backend.RunParsed(sl.ctx, s.runner, s.task(sl.key, c), parse)
		return classify(err)
	})
	return res, err
}

// requireArg rejects empty values and values git would read as an option.
func requireArg(what, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s not specified", ErrInvalidArgument, what)
	}
	if strings.HasPrefix(value, "-") {
		return fmt.Errorf("%w: %s must not start with '-'", ErrInvalidArgument, what)
	}
	return nil
}
