package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/todosync/internal/auth"
	"github.com/idilsaglam/todosync/internal/logging"
	"github.com/idilsaglam/todosync/internal/todo"
	"github.com/idilsaglam/todosync/internal/tui"
	"github.com/idilsaglam/todosync/internal/ui"
)

type App struct {
	Store      string
	DB         string
	Remote     string
	Collection string
	LogFile    string
	LogLevel   string
	Theme      string
	Color      bool
	NoColor    bool

	log       *slog.Logger
	logCloser io.Closer
}

func NewRootCmd() *cobra.Command { return newRootCmd(&App{}) }

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "todo",
		Short:         "A live-synced todo list (TUI + CLI)",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive list
  todo

  # Scriptable commands
  todo add "Buy milk"
  todo ls --filter not-completed
  todo toggle 2
  todo rm 3 --yes

  # Share a list over HTTP and open it from another machine
  todo serve --addr :8080
  todo --remote http://host:8080
`),
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(s, &err)
			return tui.Run(cmd.Context(), s.repo, app.log)
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if app.Color && app.NoColor {
			return usageErrorf("--color and --no-color are mutually exclusive")
		}
		ui.SetTheme(app.Theme)
		ui.SetColorForcing(app.Color, app.NoColor || ui.Current().Name == "mono")
		return app.openLog(cmd)
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError{err: err}
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.Store, "store", envOr("TODO_STORE", storeSQLite), "Local store engine (sqlite|json|memory)")
	pf.StringVar(&app.DB, "db", envOr("TODO_DB", ""), "Store file path (default: <config dir>/todo.db or todos.json)")
	pf.StringVar(&app.Remote, "remote", envOr("TODO_REMOTE", ""), "Base URL of a document server; overrides --store")
	pf.StringVar(&app.Collection, "collection", envOr("TODO_COLLECTION", todo.DefaultCollection), "Collection holding the todos")
	pf.StringVar(&app.LogFile, "log-file", envOr("TODO_LOG", ""), "Log file (default: <config dir>/todo.log; '-' = stderr; 'off' = none)")
	pf.StringVar(&app.LogLevel, "log-level", envOr("TODO_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	pf.StringVar(&app.Theme, "theme", envOr("TODO_THEME", "classic"), "Color theme (classic|neon|mono)")
	pf.BoolVar(&app.Color, "color", false, "Force colored output")
	pf.BoolVar(&app.NoColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newToggleCmd(app))
	cmd.AddCommand(newRemoveCmd(app))
	cmd.AddCommand(newCompleteAllCmd(app))
	cmd.AddCommand(newClearCompletedCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newAuthCmd(app))

	return cmd
}

// Execute runs the CLI and returns the process exit code:
// 0 ok, 1 failure, 2 usage error.
func Execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{}
	defer app.closeLog()

	cmd := newRootCmd(app)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return exitCode(stderr, cmd.ExecuteContext(ctx))
}

func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var re reportedError
	if !errors.As(err, &re) {
		ui.Fail(stderr, err.Error())
	}
	var ue usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// ------- logging -------

func (app *App) openLog(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(app.LogLevel)
	if err != nil {
		return usageError{err: err}
	}
	switch app.LogFile {
	case "off":
		app.log, app.logCloser = logging.Discard(), nil
		return nil
	case logging.Stderr:
		app.log, app.logCloser = logging.New(cmd.ErrOrStderr(), level), nil
		return nil
	}
	path := app.LogFile
	if path == "" {
		dir, err := auth.ConfigDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "todo.log")
	}
	log, closer, err := logging.Open(path, level)
	if err != nil {
		return err
	}
	app.log, app.logCloser = log, closer
	app.log.Debug("command started", "command", cmd.CommandPath())
	return nil
}

func (app *App) closeLog() {
	if app.logCloser != nil {
		_ = app.logCloser.Close()
		app.logCloser = nil
	}
}

// ------- args -------

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErrorf("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return nil
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("usage: %s", usage)
		}
		return nil
	}
}

func minArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usageErrorf("usage: %s", usage)
		}
		return nil
	}
}
