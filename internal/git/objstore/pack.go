package objstore

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// readPacked looks h up in the pack files through go-git's storage. It is
// only consulted after the loose object is missing.
func (s *Store) readPacked(h plumbing.Hash) (*Object, error) {
	s.packMu.Lock()
	defer s.packMu.Unlock()
	if s.packed == nil {
		s.packed = filesystem.NewStorage(osfs.New(s.gitDir), cache.NewObjectLRUDefault())
	}
	enc, err := s.packed.EncodedObject(plumbing.AnyObject, h)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, fmt.Errorf("read object %s: %w", h, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read packed object %s: %w", h, err)
	}
	r, err := enc.Reader()
	if err != nil {
		return nil, fmt.Errorf("read packed object %s: %w", h, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read packed object %s: %w", h, err)
	}
	return &Object{Hash: h, Type: enc.Type(), Size: enc.Size(), Data: data}, nil
}

// dropPacked forgets the pack list so packs written by a later gc are seen.
func (s *Store) dropPacked() {
	s.packMu.Lock()
	defer s.packMu.Unlock()
	s.packed = nil
}
