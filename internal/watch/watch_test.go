package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func newGitDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "refs", "heads"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, content := range map[string]string{
		"HEAD":   "ref: refs/heads/main\n",
		"index":  "DIRC",
		"config": "[core]\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func touch(t *testing.T, path, content string, offset time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	when := time.Now().Add(offset)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func waitEvent(t *testing.T, w *Watcher, want Kind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				t.Fatal("events channel closed")
			}
			if ev.Kind.Has(want) {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event before timeout", want)
		}
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Kind
		want string
	}{
		{0, "none"},
		{HeadChanged, "head"},
		{HeadChanged | RefsChanged, "head|refs"},
		{IndexChanged | ConfigChanged, "index|config"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Fatalf("Kind(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	dir := newGitDir(t)
	w, err := New(dir, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct {
		rel  string
		kind Kind
		ok   bool
	}{
		{"HEAD", HeadChanged, true},
		{"index", IndexChanged, true},
		{"config", ConfigChanged, true},
		{"packed-refs", RefsChanged, true},
		{"refs/heads/feature/x", RefsChanged, true},
		{"index.lock", 0, false},
		{"refs/heads/main.lock", 0, false},
		{"refs/tags/v1", 0, false},
		{"ORIG_HEAD", 0, false},
	}
	for _, tt := range tests {
		_, kind, ok := w.classify(filepath.Join(dir, filepath.FromSlash(tt.rel)))
		if kind != tt.kind || ok != tt.ok {
			t.Fatalf("classify(%s) = %v, %v; want %v, %v", tt.rel, kind, ok, tt.kind, tt.ok)
		}
	}
}

func TestNewRejectsMissingDir(t *testing.T) {
	t.Parallel()

	if _, err := New(filepath.Join(t.TempDir(), "nope"), Options{}); err == nil {
		t.Fatal("expected error for missing git dir")
	}
}

func TestFlushMergesAndDropsWhenFull(t *testing.T) {
	t.Parallel()

	w, err := New(newGitDir(t), Options{Buffer: 1, Debounce: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	w.record(IndexChanged, "index")
	w.record(HeadChanged, "HEAD")
	w.record(IndexChanged, "index")
	w.flush()
	w.record(RefsChanged, "refs/heads/x")
	w.flush() // dropped: buffer holds one event

	ev := <-w.Events()
	if want := HeadChanged | IndexChanged; ev.Kind != want {
		t.Fatalf("Kind = %v, want %v", ev.Kind, want)
	}
	if want := []string{"HEAD", "index"}; !slices.Equal(ev.Paths, want) {
		t.Fatalf("Paths = %v, want %v", ev.Paths, want)
	}
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestPollingDetectsHeadChange(t *testing.T) {
	t.Parallel()

	dir := newGitDir(t)
	w, err := New(dir, Options{Poll: true, PollInterval: 10 * time.Millisecond, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.Polling() {
		t.Fatal("Polling() = false, want true")
	}
	// Let the first observation happen; it must not emit.
	time.Sleep(50 * time.Millisecond)
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected initial event %+v", ev)
	default:
	}

	touch(t, filepath.Join(dir, "HEAD"), "ref: refs/heads/other\n", time.Hour)
	ev := waitEvent(t, w, HeadChanged)
	if !slices.Contains(ev.Paths, "HEAD") {
		t.Fatalf("Paths = %v, want HEAD", ev.Paths)
	}
}

func TestNotifyDetectsNewBranchRef(t *testing.T) {
	t.Parallel()

	dir := newGitDir(t)
	w, err := New(dir, Options{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.Polling() {
		t.Skip("fsnotify unavailable")
	}

	if err := os.MkdirAll(filepath.Join(dir, "refs", "heads", "feature"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	ref := filepath.Join(dir, "refs", "heads", "feature", "x")
	touch(t, ref, "0123456789abcdef0123456789abcdef01234567\n", 0)
	waitEvent(t, w, RefsChanged)

	touch(t, filepath.Join(dir, "index"), "DIRC2", 0)
	waitEvent(t, w, IndexChanged)
}

func TestCloseClosesEvents(t *testing.T) {
	t.Parallel()

	w, err := New(newGitDir(t), Options{Poll: true, PollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Fatal("events channel still open after Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("Start after Close succeeded")
	}
}
