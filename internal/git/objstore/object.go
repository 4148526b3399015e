package objstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/klauspost/compress/zlib"

	"github.com/thiagokokada/gitstate-go/internal/linediff"
)

// ErrObjectNotFound is returned when neither a loose object nor a pack holds
// the hash.
var ErrObjectNotFound = errors.New("object not found")

type Object struct {
	Hash plumbing.Hash
	Type plumbing.ObjectType
	Size int64
	Data []byte
}

func (s *Store) objectPath(h plumbing.Hash) string {
	hex := h.String()
	return filepath.Join(s.gitDir, "objects", hex[:2], hex[2:])
}

// ReadObject inflates the loose object for h, falling back to the pack files.
func (s *Store) ReadObject(h plumbing.Hash) (*Object, error) {
	if h.IsZero() {
		return nil, fmt.Errorf("read object: %w", ErrObjectNotFound)
	}
	f, err := os.Open(s.objectPath(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.readPacked(h)
		}
		return nil, fmt.Errorf("read object %s: %w", h, err)
	}
	defer f.Close()
	obj, err := decodeLooseObject(f)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", h, err)
	}
	obj.Hash = h
	return obj, nil
}

// ReadBlobLines returns the content of a blob split into lines, each keeping
// its terminator.
func (s *Store) ReadBlobLines(h plumbing.Hash) ([]string, error) {
	obj, err := s.ReadObject(h)
	if err != nil {
		return nil, err
	}
	if obj.Type != plumbing.BlobObject {
		return nil, fmt.Errorf("object %s is a %s, not a blob", h, obj.Type)
	}
	return linediff.SplitLines(string(obj.Data)), nil
}

func decodeLooseObject(r io.Reader) (*Object, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return nil, fmt.Errorf("missing object header")
	}
	typ, size, ok := bytes.Cut(raw[:nul], []byte{' '})
	if !ok {
		return nil, fmt.Errorf("invalid object header %q", raw[:nul])
	}
	objType, err := plumbing.ParseObjectType(string(typ))
	if err != nil {
		return nil, fmt.Errorf("invalid object type %q", typ)
	}
	n, err := strconv.ParseInt(string(size), 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid object size %q", size)
	}
	data := raw[nul+1:]
	if int64(len(data)) != n {
		return nil, fmt.Errorf("object size mismatch: header %d, content %d", n, len(data))
	}
	return &Object{Type: objType, Size: n, Data: data}, nil
}
