package objstore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

const (
	headFile      = "HEAD"
	packedRefs    = "packed-refs"
	symrefPrefix  = "ref: "
	maxSymrefHops = 5

	// BranchPrefix is the namespace of local branches.
	BranchPrefix = "refs/heads/"
)

// Head is the decoded HEAD file. Ref is empty when HEAD is detached; Hash is
// zero on an unborn branch.
type Head struct {
	Ref  string
	Hash plumbing.Hash
}

// Branch returns the short branch name, or "" when detached.
func (h Head) Branch() string {
	name, _ := strings.CutPrefix(h.Ref, BranchPrefix)
	return name
}

func (s *Store) ReadHead() (Head, error) {
	line, err := readFirstLine(filepath.Join(s.gitDir, headFile))
	if err != nil {
		return Head{}, fmt.Errorf("read HEAD: %w", err)
	}
	if ref, ok := strings.CutPrefix(line, symrefPrefix); ok {
		ref = strings.TrimSpace(ref)
		h, _, err := s.ResolveRef(ref)
		if err != nil {
			return Head{}, err
		}
		return Head{Ref: ref, Hash: h}, nil
	}
	if !plumbing.IsHash(line) {
		return Head{}, fmt.Errorf("read HEAD: unexpected content %q", line)
	}
	return Head{Hash: plumbing.NewHash(line)}, nil
}

// ResolveRef follows a full ref name ("refs/heads/main") through loose files,
// symbolic refs and packed-refs. A missing ref is not an error.
func (s *Store) ResolveRef(name string) (plumbing.Hash, bool, error) {
	for range maxSymrefHops {
		line, err := readFirstLine(filepath.Join(s.gitDir, filepath.FromSlash(name)))
		switch {
		case err == nil:
			if target, ok := strings.CutPrefix(line, symrefPrefix); ok {
				name = strings.TrimSpace(target)
				continue
			}
			if !plumbing.IsHash(line) {
				return plumbing.ZeroHash, false, fmt.Errorf("ref %s: unexpected content %q", name, line)
			}
			return plumbing.NewHash(line), true, nil
		case errors.Is(err, fs.ErrNotExist), isDirErr(err):
			packed, err := s.PackedRefs()
			if err != nil {
				return plumbing.ZeroHash, false, err
			}
			h, ok := packed[name]
			return h, ok, nil
		default:
			return plumbing.ZeroHash, false, fmt.Errorf("read ref %s: %w", name, err)
		}
	}
	return plumbing.ZeroHash, false, fmt.Errorf("ref %s: too many symbolic ref hops", name)
}

// PackedRefs parses the packed-refs file; peeled lines are skipped.
func (s *Store) PackedRefs() (map[string]plumbing.Hash, error) {
	refs := map[string]plumbing.Hash{}
	f, err := os.Open(filepath.Join(s.gitDir, packedRefs))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return refs, nil
		}
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		hex, name, ok := strings.Cut(line, " ")
		if !ok || !plumbing.IsHash(hex) {
			continue
		}
		refs[strings.TrimSpace(name)] = plumbing.NewHash(hex)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	return refs, nil
}

// Branches lists local branch names from loose refs and packed-refs, sorted.
func (s *Store) Branches() ([]string, error) {
	seen := map[string]struct{}{}
	dir := filepath.Join(s.gitDir, filepath.FromSlash(BranchPrefix))
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		seen[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	packed, err := s.PackedRefs()
	if err != nil {
		return nil, err
	}
	for name := range packed {
		if short, ok := strings.CutPrefix(name, BranchPrefix); ok && short != "" {
			seen[short] = struct{}{}
		}
	}
	branches := make([]string, 0, len(seen))
	for name := range seen {
		branches = append(branches, name)
	}
	slices.Sort(branches)
	return branches, nil
}

// WriteRef points the full ref name at h.
func (s *Store) WriteRef(name string, h plumbing.Hash) error {
	if h.IsZero() {
		return fmt.Errorf("write ref %s: zero hash", name)
	}
	p := filepath.Join(s.gitDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("write ref %s: %w", name, err)
	}
	if err := writeLocked(p, h.String()+"\n"); err != nil {
		return fmt.Errorf("write ref %s: %w", name, err)
	}
	return nil
}

// WriteSymbolicHead makes HEAD a symbolic ref to the full ref name.
func (s *Store) WriteSymbolicHead(ref string) error {
	if err := writeLocked(filepath.Join(s.gitDir, headFile), symrefPrefix+ref+"\n"); err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	return nil
}

// writeLocked follows git's locking protocol: write <path>.lock exclusively,
// then rename it over path.
func writeLocked(path, content string) error {
	lock := path + ".lock"
	f, err := os.OpenFile(lock, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(lock)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(lock)
		return err
	}
	if err := os.Rename(lock, path); err != nil {
		os.Remove(lock)
		return err
	}
	return nil
}

func readFirstLine(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line), nil
}

func isDirErr(err error) bool {
	var pe *fs.PathError
	if !errors.As(err, &pe) {
		return false
	}
	info, statErr := os.Stat(pe.Path)
	return statErr == nil && info.IsDir()
}
