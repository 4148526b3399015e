// Package git reports the state of the repository enclosing a path: branch,
// remote, working-tree status and per-file diffs.
package git

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/thiagokokada/gitstate-go/internal/config"
	"github.com/thiagokokada/gitstate-go/internal/git/backend"
	"github.com/thiagokokada/gitstate-go/internal/git/runner"
)

// Repository is safe for concurrent use; every call holds mu for its whole
// duration, so a SetBranch is never observed half done.
type Repository struct {
	mu sync.Mutex

	root   string
	gitDir string
	remote string

	backend backend.Backend // nil outside a repository
	logger  *slog.Logger
}

type options struct {
	cfg     config.Config
	backend backend.Backend
	runner  runner.Runner
	logger  *slog.Logger
}

type Option func(*options)

func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithBackend skips backend selection.
func WithBackend(b backend.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithRunner replaces the process runner used by the cli backend.
func WithRunner(r runner.Runner) Option {
	return func(o *options) { o.runner = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open resolves uriOrPath to its repository. A path outside any repository
// is not an error: the returned Repository answers with zero values.
func Open(uriOrPath string, opts ...Option) (*Repository, error) {
	o := options{cfg: config.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	root, found, err := Resolve(uriOrPath)
	if err != nil {
		return nil, err
	}
	r := &Repository{root: root, remote: o.cfg.Remote, logger: o.logger, backend: o.backend}
	if r.remote == "" {
		r.remote = "origin"
	}
	if !found {
		o.logger.Debug("no repository found", slog.String("path", root))
		return r, nil
	}
	if r.gitDir, err = GitDir(root); err != nil {
		return nil, fmt.Errorf("locate git dir: %w", err)
	}
	if r.backend == nil {
		r.backend, err = newBackend(root, r.gitDir, o)
		if err != nil {
			return nil, fmt.Errorf("open %s backend: %w", o.cfg.Backend, err)
		}
	}
	o.logger.Debug("repository opened",
		slog.String("root", root),
		slog.String("git_dir", r.gitDir),
		slog.String("backend", r.backend.Name()),
	)
	return r, nil
}

func newBackend(root, gitDir string, o options) (backend.Backend, error) {
	switch o.cfg.Backend {
	case config.BackendFiles, "":
		return backend.OpenFiles(root, gitDir, o.logger), nil
	case config.BackendCLI:
		run := o.runner
		if run == nil {
			run = runner.New(o.cfg.GitBinary, o.cfg.CommandTimeout.Duration)
		}
		return backend.OpenCLI(context.Background(), root, run)
	case config.BackendGoGit:
		return backend.OpenGoGit(root)
	default:
		return nil, fmt.Errorf("unknown backend %q", o.cfg.Backend)
	}
}

// NewWithBackend wraps b directly. Used by tests.
func NewWithBackend(b backend.Backend) *Repository {
	return &Repository{root: b.RepoPath(), remote: "origin", backend: b, logger: slog.Default()}
}

func (r *Repository) Root() string { return r.root }

// GitDir is empty outside a repository.
func (r *Repository) GitDir() string { return r.gitDir }

func (r *Repository) IsRepository() bool { return r.backend != nil }

func (r *Repository) BackendName() string {
	if r.backend == nil {
		return ""
	}
	return r.backend.Name()
}

// Refresh drops cached index state.
func (r *Repository) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rf, ok := r.backend.(backend.Refresher); ok {
		rf.Refresh()
	}
}
