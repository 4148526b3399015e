package git

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"sync"
	"testing"

	"github.com/thiagokokada/gitstate-go/internal/config"
	"github.com/thiagokokada/gitstate-go/internal/gittest"
	"github.com/thiagokokada/gitstate-go/internal/linediff"
)

func openWith(t *testing.T, root, backendName string) *Repository {
	t.Helper()
	if backendName == config.BackendCLI {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git not installed")
		}
	}
	cfg := config.Default()
	cfg.Backend = backendName
	r, err := Open(root, WithConfig(cfg))
	if err != nil {
		t.Fatalf("Open(%s): %v", backendName, err)
	}
	return r
}

func TestOpenOutsideRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, err := Open("file://" + dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.IsRepository() {
		t.Skip("temp dir is inside a repository")
	}
	ctx := context.Background()
	if r.Root() != dir {
		t.Fatalf("Root() = %q, want %q", r.Root(), dir)
	}
	if b, err := r.Branch(ctx); b != "" || err != nil {
		t.Fatalf("Branch() = %q, %v; want empty, nil", b, err)
	}
	if s, err := r.Status(ctx); !s.Empty() || err != nil {
		t.Fatalf("Status() = %+v, %v; want empty, nil", s, err)
	}
	if l, err := r.Label(ctx); l != "" || err != nil {
		t.Fatalf("Label() = %q, %v; want empty, nil", l, err)
	}
	if err := r.SetBranch(ctx, "main"); !errors.Is(err, ErrNotRepository) {
		t.Fatalf("SetBranch error = %v, want ErrNotRepository", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	t.Parallel()

	repo := gittest.Init(t)
	cfg := config.Default()
	cfg.Backend = "svn"
	if _, err := Open(repo.Root, WithConfig(cfg)); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRepositoryEndToEnd(t *testing.T) {
	t.Parallel()

	for _, name := range config.Backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			repo := gittest.Init(t)
			repo.CommitFiles("initial", map[string]string{
				"a.txt":  "a\nb\nc\n",
				"rm.txt": "bye\n",
			})
			repo.SetRemote("origin", "https://example.com/org/widgets.git")
			repo.WriteFile("a.txt", "a\nx\nc\nd\n")
			repo.RemoveFile("rm.txt")
			repo.WriteFile("new.txt", "n\n")
			repo.Add("new.txt")

			r := openWith(t, repo.Path("a.txt"), name)
			ctx := context.Background()
			if r.Root() != repo.Root || !r.IsRepository() || r.BackendName() != name {
				t.Fatalf("Root/IsRepository/BackendName = %q/%v/%q", r.Root(), r.IsRepository(), r.BackendName())
			}

			label, err := r.Label(ctx)
			if err != nil || label != "widgets/"+gittest.DefaultBranch {
				t.Fatalf("Label() = %q, %v", label, err)
			}

			status, err := r.Status(ctx)
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			want := StatusSet{Added: []string{"new.txt"}, Modified: []string{"a.txt"}, Removed: []string{"rm.txt"}}
			if !reflect.DeepEqual(status, want) {
				t.Fatalf("Status() = %+v, want %+v", status, want)
			}

			d, err := r.Diff(ctx, repo.Path("a.txt"))
			if err != nil {
				t.Fatalf("Diff: %v", err)
			}
			if d.Path != "a.txt" {
				t.Fatalf("Diff().Path = %q, want a.txt", d.Path)
			}
			removed, added := linediff.Spans(d.Changes)
			if !reflect.DeepEqual(removed, []linediff.Span{{Start: 2, End: 2}}) ||
				!reflect.DeepEqual(added, []linediff.Span{{Start: 2, End: 2}, {Start: 4, End: 4}}) {
				t.Fatalf("Spans() = %v, %v", removed, added)
			}

			stat, ok, err := r.Stat(ctx, "a.txt")
			if err != nil || !ok || stat != "2 insertions(+), 1 deletion(-)" {
				t.Fatalf("Stat() = %q, %v, %v", stat, ok, err)
			}
			if _, ok, err := r.Stat(ctx, "new.txt"); err != nil || ok {
				t.Fatalf("Stat(new.txt) ok = %v, err = %v; want false, nil", ok, err)
			}

			hunks, err := r.UnifiedDiff(ctx, "a.txt")
			if err != nil {
				t.Fatalf("UnifiedDiff: %v", err)
			}
			if want := "@@ -2 +2 @@\n-b\n+x\n@@ -3,0 +4 @@\n+d"; hunks != want {
				t.Fatalf("UnifiedDiff() = %q, want %q", hunks, want)
			}
		})
	}
}

func TestDiffDegradesWithoutCommittedSide(t *testing.T) {
	t.Parallel()

	repo := gittest.Init(t)
	repo.CommitFiles("initial", map[string]string{"a.txt": "a\n"})
	repo.WriteFile("untracked.txt", "one\ntwo\n")
	r := openWith(t, repo.Root, config.BackendFiles)

	d, err := r.Diff(context.Background(), "untracked.txt")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if d.Committed != nil {
		t.Fatalf("Committed = %q, want nil", d.Committed)
	}
	if ins, del := d.Stat(); ins != 2 || del != 0 {
		t.Fatalf("Stat() = %d, %d; want 2, 0", ins, del)
	}
}

func TestDiffRejectsPathOutsideRoot(t *testing.T) {
	t.Parallel()

	r := NewWithBackend(&fakeBackend{repoPath: "/repo"})
	for _, p := range []string{"/elsewhere/file", "../file", "."} {
		if _, err := r.Diff(context.Background(), p); err == nil {
			t.Fatalf("Diff(%q) succeeded, want error", p)
		}
	}
}

func TestSetBranchRoundTripFiles(t *testing.T) {
	t.Parallel()

	repo := gittest.Init(t)
	repo.CommitFiles("initial", map[string]string{"a.txt": "a\n"})
	r := openWith(t, repo.Root, config.BackendFiles)
	ctx := context.Background()

	if err := r.SetBranch(ctx, "feature/x"); err != nil {
		t.Fatalf("SetBranch(feature/x): %v", err)
	}
	if b, _ := r.Branch(ctx); b != "feature/x" {
		t.Fatalf("Branch() = %q, want feature/x", b)
	}
	if err := r.SetBranch(ctx, "feature/x"); err != nil {
		t.Fatalf("SetBranch(feature/x) again: %v", err)
	}
	if err := r.SetBranch(ctx, gittest.DefaultBranch); err != nil {
		t.Fatalf("SetBranch(main): %v", err)
	}
	branches, err := r.Branches(ctx)
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	if want := []string{"feature/x", gittest.DefaultBranch}; !reflect.DeepEqual(branches, want) {
		t.Fatalf("Branches() = %v, want %v", branches, want)
	}
}

func TestRepositoryConcurrentAccess(t *testing.T) {
	t.Parallel()

	repo := gittest.Init(t)
	repo.CommitFiles("initial", map[string]string{"a.txt": "a\n"})
	r := openWith(t, repo.Root, config.BackendFiles)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := gittest.DefaultBranch
			if i%2 == 0 {
				name = "side"
			}
			if err := r.SetBranch(ctx, name); err != nil {
				t.Errorf("SetBranch(%s): %v", name, err)
			}
			if _, err := r.Branch(ctx); err != nil {
				t.Errorf("Branch: %v", err)
			}
		}()
	}
	wg.Wait()
}
