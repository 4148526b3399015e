// Package objstore reads git's on-disk formats directly: the binary index,
// loose objects, trees, and refs. Objects missing from the loose store are
// looked up in the pack files through go-git.
package objstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

type Store struct {
	root   string
	gitDir string

	mu    sync.Mutex
	index *indexCache

	packMu sync.Mutex
	packed *filesystem.Storage
}

type indexCache struct {
	modTime time.Time
	size    int64
	entries []IndexEntry
	byPath  map[string]int
	err     error // *MalformedIndexError when entries are partial
}

// New returns a Store for the worktree root whose metadata lives in gitDir.
func New(root, gitDir string) *Store {
	return &Store{root: root, gitDir: gitDir}
}

func (s *Store) Root() string   { return s.root }
func (s *Store) GitDir() string { return s.gitDir }

// Refresh forgets the cached index and pack list.
func (s *Store) Refresh() {
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
	s.dropPacked()
}

// Entries returns the parsed index. The parse is cached until the index
// file's modification time or size changes. A missing index has no entries.
// When the index is malformed the entries read before the bad record are
// returned together with an error matching ErrMalformedIndex.
func (s *Store) Entries() ([]IndexEntry, error) {
	c, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return c.entries, c.err
}

// BlobHashFor returns the blob recorded in the index for path, which may be
// absolute or relative to the worktree root.
func (s *Store) BlobHashFor(path string) (plumbing.Hash, bool, error) {
	rel, err := s.RelPath(path)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	c, err := s.loadIndex()
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	i, ok := c.byPath[rel]
	if !ok {
		return plumbing.ZeroHash, false, nil
	}
	return c.entries[i].Hash, true, nil
}

// RelPath converts path to the slash separated form used by the index.
func (s *Store) RelPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return "", err
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path %s is outside %s", path, s.root)
		}
		path = rel
	}
	return filepath.ToSlash(filepath.Clean(path)), nil
}

func (s *Store) loadIndex() (*indexCache, error) {
	p := filepath.Join(s.gitDir, "index")
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &indexCache{}, nil
		}
		return nil, fmt.Errorf("stat index: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.index; c != nil && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		return c, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	entries, parseErr := ParseIndex(data)
	if parseErr != nil && !errors.Is(parseErr, ErrMalformedIndex) {
		return nil, fmt.Errorf("parse index: %w", parseErr)
	}
	c := &indexCache{
		modTime: info.ModTime(),
		size:    info.Size(),
		entries: entries,
		byPath:  make(map[string]int, len(entries)),
		err:     parseErr,
	}
	for i, e := range entries {
		// Conflicted paths carry several stages; stage 0 or the first seen wins.
		if _, ok := c.byPath[e.Path]; ok && e.Stage() != 0 {
			continue
		}
		c.byPath[e.Path] = i
	}
	s.index = c
	return c, nil
}

// HashFile computes the blob hash git would record for the file at path.
// Symlinks hash their target, like git does.
func (s *Store) HashFile(path string) (plumbing.Hash, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, filepath.FromSlash(path))
	}
	info, err := os.Lstat(path)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var data []byte
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		data = []byte(target)
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return plumbing.ZeroHash, err
		}
	}
	return plumbing.ComputeHash(plumbing.BlobObject, data), nil
}
