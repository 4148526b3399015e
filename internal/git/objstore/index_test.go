package objstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

func TestParseIndexTwoEntries(t *testing.T) {
	t.Parallel()

	short := plumbing.NewHash("1111111111111111111111111111111111111111")
	long := plumbing.NewHash("2222222222222222222222222222222222222222")
	data := buildIndex(t, []testIndexEntry{
		{path: "a.go", hash: short, size: 4},
		{path: "dir/nested/twenty.go", hash: long, size: 20},
	})

	entries, err := ParseIndex(data)
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if len("dir/nested/twenty.go") != 20 {
		t.Fatal("fixture path must be 20 bytes long")
	}
	if entries[0].Path != "a.go" || entries[0].Hash != short || entries[0].Size != 4 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Path != "dir/nested/twenty.go" || entries[1].Hash != long {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
	if got := entries[1].Hash.String(); len(got) != 40 || got != strings.Repeat("2", 40) {
		t.Fatalf("hash hex = %q", got)
	}
	if entries[0].Mode != 0o100644 || entries[0].Stage() != 0 {
		t.Fatalf("unexpected mode/stage: %o %d", entries[0].Mode, entries[0].Stage())
	}
}

func TestParseIndexStopsAtInvalidPath(t *testing.T) {
	t.Parallel()

	good := plumbing.NewHash("3333333333333333333333333333333333333333")
	data := buildIndex(t, []testIndexEntry{
		{path: "ok.txt", hash: good},
		{path: "bad\xff\xfe.txt", hash: good},
		{path: "never.txt", hash: good},
	})

	entries, err := ParseIndex(data)
	if !errors.Is(err, ErrMalformedIndex) {
		t.Fatalf("expected ErrMalformedIndex, got %v", err)
	}
	var me *MalformedIndexError
	if !errors.As(err, &me) || me.Offset <= indexHeaderSize {
		t.Fatalf("unexpected error detail: %#v", err)
	}
	if len(entries) != 1 || entries[0].Path != "ok.txt" {
		t.Fatalf("expected entries before the corruption, got %+v", entries)
	}
}

func TestParseIndexTruncatedEntry(t *testing.T) {
	t.Parallel()

	h := plumbing.NewHash("4444444444444444444444444444444444444444")
	data := buildIndex(t, []testIndexEntry{{path: "one", hash: h}, {path: "two", hash: h}})
	// Claim a third entry that is not there: the scan ends at the checksum.
	data[11] = 3

	entries, err := ParseIndex(data)
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestParseIndexRejectsBadHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "short", data: []byte("DIRC")},
		{name: "signature", data: append([]byte("XXXX\x00\x00\x00\x02\x00\x00\x00\x00"), make([]byte, 20)...)},
		{name: "version4", data: append([]byte("DIRC\x00\x00\x00\x04\x00\x00\x00\x00"), make([]byte, 20)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseIndex(tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBlobHashForCachesUntilIndexChanges(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	first := plumbing.NewHash("5555555555555555555555555555555555555555")
	second := plumbing.NewHash("6666666666666666666666666666666666666666")
	indexPath := filepath.Join(s.GitDir(), "index")
	if err := os.WriteFile(indexPath, buildIndex(t, []testIndexEntry{{path: "src/main.go", hash: first}}), 0o644); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.BlobHashFor(filepath.Join(s.Root(), "src", "main.go"))
	if err != nil || !ok || got != first {
		t.Fatalf("BlobHashFor(abs) = %s, %v, %v", got, ok, err)
	}
	if _, ok, _ := s.BlobHashFor("missing.go"); ok {
		t.Fatal("expected missing path to be absent")
	}

	if err := os.WriteFile(indexPath, buildIndex(t, []testIndexEntry{{path: "src/main.go", hash: second}}), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(indexPath, future, future); err != nil {
		t.Fatal(err)
	}
	got, ok, err = s.BlobHashFor("src/main.go")
	if err != nil || !ok || got != second {
		t.Fatalf("BlobHashFor after rewrite = %s, %v, %v", got, ok, err)
	}
}

func TestBlobHashForConflictedPath(t *testing.T) {
	t.Parallel()

	base := plumbing.NewHash("1111111111111111111111111111111111111111")
	ours := plumbing.NewHash("2222222222222222222222222222222222222222")
	theirs := plumbing.NewHash("3333333333333333333333333333333333333333")
	merged := plumbing.NewHash("4444444444444444444444444444444444444444")

	tests := []struct {
		name    string
		entries []testIndexEntry
		want    plumbing.Hash
	}{
		{
			name: "first_stage_wins",
			entries: []testIndexEntry{
				{path: "c.go", hash: base, stage: 1},
				{path: "c.go", hash: ours, stage: 2},
				{path: "c.go", hash: theirs, stage: 3},
			},
			want: base,
		},
		{
			name: "stage_zero_wins",
			entries: []testIndexEntry{
				{path: "c.go", hash: ours, stage: 2},
				{path: "c.go", hash: merged},
				{path: "c.go", hash: theirs, stage: 3},
			},
			want: merged,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t)
			if err := os.WriteFile(filepath.Join(s.GitDir(), "index"), buildIndex(t, tt.entries), 0o644); err != nil {
				t.Fatal(err)
			}
			got, ok, err := s.BlobHashFor("c.go")
			if err != nil || !ok || got != tt.want {
				t.Fatalf("BlobHashFor = %s, %v, %v; want %s", got, ok, err, tt.want)
			}
		})
	}
}

func TestBlobHashForWithoutIndex(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, ok, err := s.BlobHashFor("anything")
	if err != nil || ok {
		t.Fatalf("BlobHashFor = %v, %v; want absent", ok, err)
	}
}

func TestRelPathRejectsOutsideRoot(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.RelPath(filepath.Dir(s.Root())); err == nil {
		t.Fatal("expected error for path outside the worktree")
	}
}
