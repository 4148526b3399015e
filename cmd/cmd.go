package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitstate-go/internal/config"
	"github.com/thiagokokada/gitstate-go/internal/git"
)

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	backend    string
	verbose    bool
	jsonLog    bool

	cfg    config.Config
	logger *slog.Logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&app{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gitstate",
		Short:         "Report the git state of a directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath(), "config file")
	flags.StringVar(&a.backend, "backend", "", "repository backend: files, cli or gogit")
	flags.BoolVar(&a.verbose, "verbose", false, "enable verbose logging")
	flags.BoolVar(&a.jsonLog, "json-log", false, "log as JSON")

	root.AddCommand(
		newInfoCmd(a),
		newBranchCmd(a),
		newBranchesCmd(a),
		newSwitchCmd(a),
		newStatusCmd(a),
		newModifiedCmd(a),
		newDiffCmd(a),
		newStatCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, unknown, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = a.backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(a.stderr, opts)
	if a.jsonLog {
		handler = slog.NewJSONHandler(a.stderr, opts)
	}
	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)
	if len(unknown) > 0 {
		a.logger.Warn("unknown config keys", slog.String("path", a.configPath), slog.Any("keys", unknown))
	}
	return nil
}

func (a *app) open(path string) (*git.Repository, error) {
	return git.Open(path, git.WithConfig(a.cfg), git.WithLogger(a.logger))
}

// fileArg makes a file argument absolute so it resolves against the working
// directory rather than the repository root.
func fileArg(arg string) (string, error) {
	p, ok := git.PathFromURI(arg)
	if !ok {
		return "", fmt.Errorf("%w: %q", git.ErrUnsupportedURI, arg)
	}
	return filepath.Abs(p)
}

// pathArg returns the optional trailing path argument, "." by default.
func pathArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "."
}
