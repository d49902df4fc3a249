package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitrelay/internal/buildinfo"
	"github.com/thiagokokada/gitrelay/internal/config"
	"github.com/thiagokokada/gitrelay/internal/credentials"
	"github.com/thiagokokada/gitrelay/internal/git"
	"github.com/thiagokokada/gitrelay/internal/git/backend"
	"github.com/thiagokokada/gitrelay/internal/highlight"
	"github.com/thiagokokada/gitrelay/internal/hub"
	"github.com/thiagokokada/gitrelay/internal/server"
	"github.com/thiagokokada/gitrelay/internal/watch"
)

func Run() error {
	return run(os.Args[1:], os.Stdin, os.Stdout)
}

type app struct {
	configPath string
	verbose    bool
	cfg        config.Config
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	root := newRootCommand(&app{})
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	return root.Execute()
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gitrelay",
		Short:         "serve git repositories to live clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "path to the TOML configuration file")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable verbose logging")

	root.AddCommand(
		newServeCommand(a),
		newQueryCommand(a),
		newCredentialHelperCommand(),
		newVersionCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func newServeCommand(a *app) *cobra.Command {
	var (
		addr         string
		gitBinary    string
		queueTimeout time.Duration
		debounce     time.Duration
		noFF         bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("addr") {
				a.cfg.Addr = addr
			}
			if flags.Changed("git") {
				a.cfg.GitBinary = gitBinary
			}
			if flags.Changed("queue-timeout") {
				a.cfg.QueueTimeout.Duration = queueTimeout
			}
			if flags.Changed("debounce") {
				a.cfg.WatchDebounce.Duration = debounce
			}
			if flags.Changed("no-ff") {
				a.cfg.NoFFMerge = noFF
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "address to listen on")
	cmd.Flags().StringVar(&gitBinary, "git", "git", "git executable")
	cmd.Flags().DurationVar(&queueTimeout, "queue-timeout", git.DefaultQueueTimeout, "how long a command may wait for its repository (0 waits forever)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "delay used to coalesce filesystem events")
	cmd.Flags().BoolVar(&noFF, "no-ff", false, "always create a merge commit")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	runner := backend.NewRunner(cfg.GitBinary)
	if err := runner.EnsureMinVersion(); err != nil {
		return err
	}

	h := hub.New(0)
	watches := watch.New(h, cfg.WatchDebounce.Duration)
	relay := credentials.New(h)
	svc := git.New(
		git.WithRunner(runner),
		git.WithNotifier(watches),
		git.WithCredentialHelper(credentialHelper(exe, dialAddr(cfg.Addr))),
		git.WithQueueTimeout(cfg.QueueTimeout.Duration),
		git.WithStashMessage(cfg.AutostashMessage),
	)
	srv := server.New(server.Options{Addr: cfg.Addr, NoFFMerge: cfg.NoFFMerge}, svc, h, watches, relay)
	return srv.Run(ctx)
}

// credentialHelper builds the credential.helper value that calls back into
// this server. git runs values starting with "!" through the shell and
// appends the action.
func credentialHelper(exe, addr string) git.CredentialHelper {
	return func(connID string) string {
		return fmt.Sprintf("!%s credential-helper --server %s %s", shellQuote(exe), shellQuote(addr), shellQuote(connID))
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// dialAddr turns a listen address into one a local client can dial.
func dialAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func newQueryCommand(a *app) *cobra.Command {
	var (
		opts  git.QueryOptions
		color bool
		theme string
	)
	cmd := &cobra.Command{
		Use:   "query <kind> [path]",
		Short: "run a read-only query and print it as JSON",
		Long:  "Kinds: " + strings.Join(git.QueryKinds(), ", "),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 1 {
				path = args[1]
			}
			svc := git.New(git.WithRunner(backend.NewRunner(a.cfg.GitBinary)))
			res, err := svc.Query(cmd.Context(), args[0], path, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", git.ErrorCode(err), err)
			}
			if diff, ok := res.(string); ok && color && args[0] == "diff" {
				return highlight.Diff(cmd.OutOrStdout(), diff, highlight.ModeFromString(theme))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of log entries (0 for all)")
	cmd.Flags().BoolVar(&opts.Numstat, "numstat", false, "include per-file line counts in log entries")
	cmd.Flags().IntVar(&opts.StashIndex, "index", 0, "stash index for stash-show")
	cmd.Flags().StringVar(&opts.File, "file", "", "file for diff")
	cmd.Flags().BoolVar(&color, "color", false, "print diff as colored text instead of JSON")
	cmd.Flags().StringVar(&theme, "theme", highlight.ModeAuto.String(), "color theme for --color: auto, light, or dark")
	return cmd
}

func newCredentialHelperCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:    "credential-helper <connection-id> <action>",
		Short:  "git credential helper relaying prompts to a live connection",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			connID, action := args[0], args[1]
			// git writes the request attributes on stdin for every action.
			if _, err := io.Copy(io.Discard, cmd.InOrStdin()); err != nil {
				return err
			}
			if action != "get" {
				return nil
			}
			creds, err := fetchCredentials(cmd.Context(), addr, connID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "username=%s\npassword=%s\n", creds.Username, creds.Password)
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "server", dialAddr(config.DefaultAddr), "address of the gitrelay server")
	return cmd
}

func fetchCredentials(ctx context.Context, addr, connID string) (credentials.Credentials, error) {
	var creds credentials.Credentials
	u := url.URL{
		Scheme:   "http",
		Host:     addr,
		Path:     "/api/credentials",
		RawQuery: url.Values{"connectionId": {connID}}.Encode(),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return creds, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return creds, fmt.Errorf("request credentials: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return creds, fmt.Errorf("request credentials: %s: %s", resp.Status, body.Error.Code)
	}
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return creds, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), buildinfo.VersionWithTags())
			return err
		},
	}
}
