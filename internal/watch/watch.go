// Package watch reports changes to a repository's HEAD, index, config and
// branch refs.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/gitstate-go/internal/debounce"
)

const (
	DefaultDebounce     = 350 * time.Millisecond
	DefaultPollInterval = time.Second
	defaultBuffer       = 16
)

// Kind is a bit set of what changed.
type Kind uint8

const (
	HeadChanged Kind = 1 << iota
	IndexChanged
	RefsChanged
	ConfigChanged
)

func (k Kind) Has(other Kind) bool { return k&other != 0 }

func (k Kind) String() string {
	var parts []string
	for _, n := range []struct {
		k    Kind
		name string
	}{
		{HeadChanged, "head"},
		{IndexChanged, "index"},
		{RefsChanged, "refs"},
		{ConfigChanged, "config"},
	} {
		if k.Has(n.k) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event batches every change seen during one debounce window. Paths are
// relative to the git dir, slash separated and sorted.
type Event struct {
	Kind  Kind
	Paths []string
}

type Options struct {
	// Poll skips fsnotify and stats HEAD and index every PollInterval.
	Poll         bool
	PollInterval time.Duration
	Debounce     time.Duration
	Buffer       int
	Logger       *slog.Logger
}

type Watcher struct {
	gitDir string
	opts   Options
	events chan Event

	mu      sync.Mutex
	pending Kind
	paths   map[string]struct{}
	closed  bool

	deb    *debounce.Debouncer
	cancel context.CancelFunc
	done   chan struct{}
	fsw    *fsnotify.Watcher
}

func New(gitDir string, opts Options) (*Watcher, error) {
	info, err := os.Stat(gitDir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", gitDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", gitDir)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := &Watcher{
		gitDir: gitDir,
		opts:   opts,
		events: make(chan Event, opts.Buffer),
		paths:  map[string]struct{}{},
	}
	w.deb = debounce.New(opts.Debounce, w.flush)
	return w, nil
}

func (w *Watcher) Events() <-chan Event { return w.events }

// Polling reports whether the watcher fell back to stat polling.
func (w *Watcher) Polling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsw == nil && w.done != nil
}

// Start begins watching in a background goroutine until ctx is done or
// Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("watcher closed")
	}
	if w.done != nil {
		return errors.New("watcher already started")
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	if !w.opts.Poll {
		fsw, err := w.newNotify()
		if err == nil {
			w.fsw = fsw
			go w.notifyLoop(ctx, fsw)
			return nil
		}
		w.opts.Logger.Warn("fsnotify unavailable, polling instead", slog.Any("error", err))
	}
	go w.pollLoop(ctx)
	return nil
}

func (w *Watcher) newNotify() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	dirs := append([]string{w.gitDir}, refDirs(filepath.Join(w.gitDir, "refs", "heads"))...)
	for _, dir := range dirs {
		w.opts.Logger.Debug("adding path to FS watcher", slog.String("path", dir))
		if err := fsw.Add(dir); err != nil {
			err := errors.Join(err, fsw.Close())
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return fsw, nil
}

// refDirs lists root and every directory below it.
func refDirs(root string) []string {
	var dirs []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	return dirs
}

func (w *Watcher) notifyLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.watchNewRefDir(fsw, ev.Name)
			}
			rel, kind, ok := w.classify(ev.Name)
			if !ok {
				continue
			}
			w.opts.Logger.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", rel),
			)
			w.record(kind, rel)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

// watchNewRefDir extends the watch to directories created below refs/heads,
// such as refs/heads/feature for a new feature/x branch.
func (w *Watcher) watchNewRefDir(fsw *fsnotify.Watcher, name string) {
	rel, err := filepath.Rel(w.gitDir, name)
	if err != nil || !strings.HasPrefix(filepath.ToSlash(rel), "refs/heads/") {
		return
	}
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return
	}
	for _, dir := range refDirs(name) {
		if err := fsw.Add(dir); err != nil {
			w.opts.Logger.Warn("watch ref dir", slog.String("path", dir), slog.Any("error", err))
		}
	}
	// Refs written before the watch was added would otherwise be missed.
	w.record(RefsChanged, filepath.ToSlash(rel))
}

func (w *Watcher) classify(name string) (string, Kind, bool) {
	rel, err := filepath.Rel(w.gitDir, name)
	if err != nil {
		return "", 0, false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasSuffix(rel, ".lock") {
		return "", 0, false
	}
	switch {
	case rel == "HEAD":
		return rel, HeadChanged, true
	case rel == "index":
		return rel, IndexChanged, true
	case rel == "config":
		return rel, ConfigChanged, true
	case rel == "packed-refs", strings.HasPrefix(rel, "refs/heads/"):
		return rel, RefsChanged, true
	}
	return "", 0, false
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer close(w.done)
	targets := []struct {
		rel  string
		kind Kind
	}{
		{"HEAD", HeadChanged},
		{"index", IndexChanged},
	}
	last := make([]time.Time, len(targets))
	seen := make([]bool, len(targets))
	check := func() {
		for i, t := range targets {
			var mtime time.Time
			if info, err := os.Stat(filepath.Join(w.gitDir, t.rel)); err == nil {
				mtime = info.ModTime()
			}
			if seen[i] && !mtime.Equal(last[i]) {
				w.record(t.kind, t.rel)
			}
			last[i], seen[i] = mtime, true
		}
	}
	check()
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

func (w *Watcher) record(kind Kind, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending |= kind
	w.paths[rel] = struct{}{}
	w.deb.Trigger()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.pending == 0 {
		return
	}
	ev := Event{Kind: w.pending}
	for p := range w.paths {
		ev.Paths = append(ev.Paths, p)
	}
	slices.Sort(ev.Paths)
	w.pending = 0
	clear(w.paths)
	select {
	case w.events <- ev:
	default:
		w.opts.Logger.Debug("dropping watch event, channel full", slog.String("kind", ev.Kind.String()))
	}
}

// Close stops watching and closes the Events channel.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.deb.Stop()
	cancel, done, fsw := w.cancel, w.done, w.fsw
	w.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
	}
	if fsw != nil {
		err = fsw.Close()
	}
	if done != nil {
		<-done
	}
	close(w.events)
	return err
}
