package objstore

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/klauspost/compress/zlib"
)

type testIndexEntry struct {
	path string
	hash  plumbing.Hash
	size  uint32
	stage int
}

// buildIndex encodes a version 2 index the same way git does.
func buildIndex(t *testing.T, entries []testIndexEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(indexSignature)
	binary.Write(&buf, binary.BigEndian, uint32(2))
	binary.Write(&buf, binary.BigEndian, uint32(len(entries)))
	for _, e := range entries {
		start := buf.Len()
		fixed := make([]byte, indexEntryFixed)
		binary.BigEndian.PutUint32(fixed[24:28], 0o100644)
		binary.BigEndian.PutUint32(fixed[36:40], e.size)
		copy(fixed[40:60], e.hash[:])
		binary.BigEndian.PutUint16(fixed[60:62], uint16(e.stage<<12|min(len(e.path), 0xfff)))
		buf.Write(fixed)
		buf.WriteString(e.path)
		buf.WriteByte(0)
		for (buf.Len()-start)%8 != 0 {
			buf.WriteByte(0)
		}
	}
	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

// writeLoose stores a loose object under gitDir and returns its hash.
func writeLoose(t *testing.T, gitDir string, typ plumbing.ObjectType, data []byte) plumbing.Hash {
	t.Helper()
	h := plumbing.ComputeHash(typ, data)
	var raw bytes.Buffer
	raw.WriteString(typ.String())
	raw.WriteByte(' ')
	raw.WriteString(strconv.Itoa(len(data)))
	raw.WriteByte(0)
	raw.Write(data)

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	hex := h.String()
	dir := filepath.Join(gitDir, "objects", hex[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, hex[2:]), compressed.Bytes(), 0o444); err != nil {
		t.Fatal(err)
	}
	return h
}

func treeEntryBytes(mode, name string, h plumbing.Hash) []byte {
	var b bytes.Buffer
	b.WriteString(mode)
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteByte(0)
	b.Write(h[:])
	return b.Bytes()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	if err := os.MkdirAll(filepath.Join(gitDir, "objects"), 0o755); err != nil {
		t.Fatal(err)
	}
	return New(root, gitDir)
}
