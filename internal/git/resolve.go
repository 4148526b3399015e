package git

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const dotGit = ".git"

// PathFromURI turns a file URI into a local path. Anything that is neither
// scheme:// nor file: is taken as a path already, so "notes:2024/x" is a
// relative path. Any other URI scheme reports false.
func PathFromURI(uriOrPath string) (string, bool) {
	s := strings.TrimSpace(uriOrPath)
	if s == "" {
		return "", false
	}
	scheme, rest, ok := strings.Cut(s, ":")
	// One letter "schemes" are Windows drive letters.
	if !ok || len(scheme) < 2 || !isScheme(scheme) {
		return s, true
	}
	isFile := strings.EqualFold(scheme, "file")
	if !isFile && !strings.HasPrefix(rest, "//") {
		return s, true
	}
	if !isFile {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return "", false
	}
	return filepath.FromSlash(p), true
}

func isScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// FindRoot returns the innermost directory at or above path that holds a
// .git entry, either a directory or a gitdir file.
func FindRoot(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for dir := filepath.Clean(abs); ; {
		if _, err := os.Lstat(filepath.Join(dir, dotGit)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Resolve maps a URI or path to a repository root. When no repository
// encloses it the cleaned absolute path comes back with found set to false.
func Resolve(uriOrPath string) (root string, found bool, err error) {
	p, ok := PathFromURI(uriOrPath)
	if !ok {
		return "", false, fmt.Errorf("%w: %q", ErrUnsupportedURI, uriOrPath)
	}
	if root, ok := FindRoot(p); ok {
		return root, true, nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false, err
	}
	return abs, false, nil
}

// GitDir locates the metadata directory of root, following a
// "gitdir: <path>" file as used by linked worktrees and submodules.
func GitDir(root string) (string, error) {
	p := filepath.Join(root, dotGit)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotRepository
		}
		return "", err
	}
	if info.IsDir() {
		return p, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	dir, ok := strings.CutPrefix(strings.TrimSpace(line), "gitdir:")
	if !ok {
		return "", fmt.Errorf("%s: not a gitdir file", p)
	}
	dir = strings.TrimSpace(dir)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return filepath.Clean(dir), nil
}
