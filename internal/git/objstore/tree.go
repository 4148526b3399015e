package objstore

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash plumbing.Hash
}

// ReadCommitTree returns the root tree of commit h.
func (s *Store) ReadCommitTree(h plumbing.Hash) (plumbing.Hash, error) {
	obj, err := s.ReadObject(h)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if obj.Type != plumbing.CommitObject {
		return plumbing.ZeroHash, fmt.Errorf("object %s is a %s, not a commit", h, obj.Type)
	}
	sc := bufio.NewScanner(bytes.NewReader(obj.Data))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		if hex, ok := strings.CutPrefix(line, "tree "); ok {
			if !plumbing.IsHash(hex) {
				return plumbing.ZeroHash, fmt.Errorf("commit %s: invalid tree hash %q", h, hex)
			}
			return plumbing.NewHash(hex), nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("commit %s has no tree", h)
}

// ReadTree decodes the entries of tree h.
func (s *Store) ReadTree(h plumbing.Hash) ([]TreeEntry, error) {
	obj, err := s.ReadObject(h)
	if err != nil {
		return nil, err
	}
	if obj.Type != plumbing.TreeObject {
		return nil, fmt.Errorf("object %s is a %s, not a tree", h, obj.Type)
	}
	return parseTree(obj.Data)
}

func parseTree(data []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("tree entry without mode")
		}
		mode, err := filemode.New(string(data[:sp]))
		if err != nil {
			return nil, fmt.Errorf("tree entry mode: %w", err)
		}
		data = data[sp+1:]
		nul := bytes.IndexByte(data, 0)
		if nul < 0 || len(data) < nul+1+20 {
			return nil, fmt.Errorf("truncated tree entry")
		}
		var e TreeEntry
		e.Name = string(data[:nul])
		e.Mode = mode
		copy(e.Hash[:], data[nul+1:nul+21])
		entries = append(entries, e)
		data = data[nul+21:]
	}
	return entries, nil
}

// FlattenTree maps every blob below tree h to its hash, keyed by slash
// separated path. Submodules are skipped.
func (s *Store) FlattenTree(h plumbing.Hash) (map[string]plumbing.Hash, error) {
	out := map[string]plumbing.Hash{}
	if err := s.flattenInto(out, "", h, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) flattenInto(out map[string]plumbing.Hash, prefix string, h plumbing.Hash, depth int) error {
	if depth > 256 {
		return fmt.Errorf("tree %s nested too deeply", h)
	}
	entries, err := s.ReadTree(h)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := path.Join(prefix, e.Name)
		switch e.Mode {
		case filemode.Dir:
			if err := s.flattenInto(out, name, e.Hash, depth+1); err != nil {
				return err
			}
		case filemode.Submodule:
		default:
			out[name] = e.Hash
		}
	}
	return nil
}
