package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/thiagokokada/gitstate-go/internal/git/backend"
	"github.com/thiagokokada/gitstate-go/internal/linediff"
)

// FileDiff compares the blob staged for Path with the file on disk.
// Committed is nil for untracked files or unreadable objects; Working is nil
// when the file was deleted.
type FileDiff struct {
	Path      string
	Committed []string
	Working   []string
	Changes   []linediff.Change
}

// Stat counts the changed lines.
func (d FileDiff) Stat() (insertions, deletions int) {
	return linediff.Count(d.Changes)
}

func (r *Repository) Diff(ctx context.Context, path string) (FileDiff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return FileDiff{}, nil
	}
	return r.diffLocked(ctx, path)
}

func (r *Repository) diffLocked(ctx context.Context, path string) (FileDiff, error) {
	rel, err := r.relPath(path)
	if err != nil {
		return FileDiff{}, err
	}
	d := FileDiff{Path: rel}
	lines, ok, err := r.backend.IndexBlob(ctx, rel)
	if err != nil {
		return FileDiff{}, fmt.Errorf("read staged %s: %w", rel, err)
	}
	if ok {
		d.Committed = lines
	}
	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(rel)))
	switch {
	case err == nil:
		d.Working = linediff.SplitLines(string(data))
	case errors.Is(err, fs.ErrNotExist):
	default:
		return FileDiff{}, fmt.Errorf("read %s: %w", rel, err)
	}
	d.Changes = linediff.Compute(d.Committed, d.Working)
	return d, nil
}

// UnifiedDiff renders zero-context hunks for path without file headers.
func (r *Repository) UnifiedDiff(ctx context.Context, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return "", nil
	}
	if ud, ok := r.backend.(backend.UnifiedDiffer); ok {
		rel, err := r.relPath(path)
		if err != nil {
			return "", err
		}
		return ud.UnifiedDiff(ctx, rel)
	}
	d, err := r.diffLocked(ctx, path)
	if err != nil {
		return "", err
	}
	return linediff.Unified(d.Committed, d.Working, 0)
}

// Stat summarises path as "N insertions(+), M deletions(-)". ok is false
// when nothing changed.
func (r *Repository) Stat(ctx context.Context, path string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return "", false, nil
	}
	if st, ok := r.backend.(backend.Stater); ok {
		rel, err := r.relPath(path)
		if err != nil {
			return "", false, err
		}
		return st.Stat(ctx, rel)
	}
	d, err := r.diffLocked(ctx, path)
	if err != nil {
		return "", false, err
	}
	ins, del := d.Stat()
	if ins == 0 && del == 0 {
		return "", false, nil
	}
	return linediff.FormatStat(ins, del), true, nil
}

// relPath accepts a file URI, an absolute path or a path relative to the
// root and returns the slash separated form.
func (r *Repository) relPath(path string) (string, error) {
	p, ok := PathFromURI(path)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURI, path)
	}
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return "", err
		}
		p = rel
	}
	p = filepath.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not a file inside %s", path, r.root)
	}
	return filepath.ToSlash(p), nil
}
