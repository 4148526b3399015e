package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"gopkg.in/ini.v1"

	"github.com/thiagokokada/gitstate-go/internal/git/objstore"
)

// Files reads the repository metadata directly without spawning processes.
// Packed objects are read through go-git's storage.
type Files struct {
	store  *objstore.Store
	logger *slog.Logger
}

func OpenFiles(root, gitDir string, logger *slog.Logger) *Files {
	if logger == nil {
		logger = slog.Default()
	}
	return &Files{store: objstore.New(root, gitDir), logger: logger}
}

func (f *Files) Name() string     { return "files" }
func (f *Files) RepoPath() string { return f.store.Root() }
func (f *Files) Refresh()         { f.store.Refresh() }

func (f *Files) HeadState(context.Context) (HeadState, error) {
	head, err := f.store.ReadHead()
	if err != nil {
		return HeadState{}, err
	}
	st := HeadState{Branch: head.Branch()}
	if !head.Hash.IsZero() {
		st.Hash = head.Hash.String()
	}
	if head.Ref == "" {
		st.Branch = "HEAD"
		st.Detached = true
	}
	return st, nil
}

func (f *Files) ListBranches(context.Context) ([]string, error) {
	return f.store.Branches()
}

// SwitchBranch only moves refs. Creating a branch records the current commit;
// switching to an existing branch is refused with ErrWorktreeCheckout when it
// would need the working tree rewritten.
func (f *Files) SwitchBranch(_ context.Context, name string, create bool) error {
	ref := objstore.BranchPrefix + name
	head, err := f.store.ReadHead()
	if err != nil {
		return err
	}
	if head.Ref == ref {
		return nil
	}
	target, exists, err := f.store.ResolveRef(ref)
	if err != nil {
		return err
	}
	if create {
		if exists {
			return fmt.Errorf("branch %q already exists", name)
		}
		// On an unborn branch there is nothing to record; HEAD just moves.
		if !head.Hash.IsZero() {
			if err := f.store.WriteRef(ref, head.Hash); err != nil {
				return err
			}
		}
		return f.store.WriteSymbolicHead(ref)
	}
	if !exists {
		return fmt.Errorf("branch %q not found", name)
	}
	if target != head.Hash {
		return fmt.Errorf("switch to %q: %w", name, ErrWorktreeCheckout)
	}
	return f.store.WriteSymbolicHead(ref)
}

func (f *Files) RemoteURL(_ context.Context, remote string) (string, error) {
	path := filepath.Join(f.store.GitDir(), "config")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read git config: %w", err)
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:    true,
		IgnoreInlineComment: true,
		InsensitiveKeys:     true,
		Loose:               true,
	}, data)
	if err != nil {
		return "", fmt.Errorf("parse git config: %w", err)
	}
	sec, err := cfg.GetSection(fmt.Sprintf("remote %q", remote))
	if err != nil {
		return "", nil
	}
	return sec.Key("url").String(), nil
}

func (f *Files) StatusMap(context.Context) (map[string]FileStatus, error) {
	headFiles, err := f.headTree()
	degraded := false
	if err != nil {
		if !errors.Is(err, objstore.ErrObjectNotFound) {
			return nil, fmt.Errorf("read HEAD tree: %w", err)
		}
		// Without HEAD's tree only index against worktree can be compared.
		f.logger.Warn("HEAD tree unreadable, staged changes not reported", slog.Any("err", err))
		degraded = true
	}
	entries, err := f.store.Entries()
	if err != nil {
		if !errors.Is(err, objstore.ErrMalformedIndex) {
			return nil, err
		}
		f.logger.Warn("using partial index", slog.Int("entries", len(entries)), slog.Any("err", err))
	}

	out := map[string]FileStatus{}
	inIndex := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if filemode.FileMode(e.Mode) == filemode.Submodule {
			inIndex[e.Path] = struct{}{}
			continue
		}
		if _, dup := inIndex[e.Path]; dup {
			continue
		}
		inIndex[e.Path] = struct{}{}

		var st FileStatus
		if e.Stage() != 0 {
			st = FileStatus{Staging: UpdatedButUnmerged, Worktree: UpdatedButUnmerged}
			out[e.Path] = st
			continue
		}
		headHash, tracked := headFiles[e.Path]
		switch {
		case degraded:
			st.Staging = Unmodified
		case !tracked:
			st.Staging = Added
		case headHash != e.Hash:
			st.Staging = Modified
		default:
			st.Staging = Unmodified
		}
		st.Worktree, err = f.worktreeStatus(e)
		if err != nil {
			return nil, err
		}
		if st.Changed() {
			out[e.Path] = st
		}
	}
	for path := range headFiles {
		if _, ok := inIndex[path]; !ok {
			out[path] = FileStatus{Staging: Deleted, Worktree: Unmodified}
		}
	}
	return out, nil
}

func (f *Files) headTree() (map[string]plumbing.Hash, error) {
	head, err := f.store.ReadHead()
	if err != nil {
		return nil, err
	}
	if head.Hash.IsZero() {
		return map[string]plumbing.Hash{}, nil
	}
	tree, err := f.store.ReadCommitTree(head.Hash)
	if err != nil {
		return nil, err
	}
	return f.store.FlattenTree(tree)
}

// worktreeStatus compares a stage 0 entry against the file on disk. Matching
// size and mtime are trusted; anything else is rehashed.
func (f *Files) worktreeStatus(e objstore.IndexEntry) (StatusCode, error) {
	path := filepath.Join(f.store.Root(), filepath.FromSlash(e.Path))
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return Deleted, nil
		}
		return Unmodified, err
	}
	if info.IsDir() {
		return Deleted, nil
	}
	if uint32(info.Size()) != e.Size {
		return Modified, nil
	}
	if info.ModTime().Equal(e.ModTime) {
		return Unmodified, nil
	}
	h, err := f.store.HashFile(path)
	if err != nil {
		return Unmodified, err
	}
	if h != e.Hash {
		return Modified, nil
	}
	return Unmodified, nil
}

func (f *Files) ModifiedFiles(ctx context.Context) ([]string, error) {
	m, err := f.StatusMap(ctx)
	if err != nil {
		return nil, err
	}
	return ChangedPaths(m), nil
}

func (f *Files) IndexBlob(_ context.Context, path string) ([]string, bool, error) {
	h, ok, err := f.store.BlobHashFor(path)
	if err != nil || !ok {
		return nil, false, err
	}
	lines, err := f.store.ReadBlobLines(h)
	if err != nil {
		if errors.Is(err, objstore.ErrObjectNotFound) {
			f.logger.Debug("index blob not readable", slog.String("path", path), slog.String("hash", h.String()))
			return nil, false, nil
		}
		return nil, false, err
	}
	return lines, true, nil
}
