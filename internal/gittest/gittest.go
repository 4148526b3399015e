// Package gittest builds throwaway repositories for tests with go-git, so
// fixtures do not depend on a git binary being installed.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const DefaultBranch = "main"

type Repo struct {
	t    testing.TB
	Root string
	Repo *gitlib.Repository
	wt   *gitlib.Worktree
}

// Init creates an empty repository on DefaultBranch in a temp dir.
func Init(t testing.TB) *Repo {
	t.Helper()
	root := t.TempDir()
	// Resolve symlinked temp dirs (macOS /var -> /private/var) so paths
	// compare equal to what the resolver reports.
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}
	repo, err := gitlib.PlainInitWithOptions(root, &gitlib.PlainInitOptions{
		InitOptions: gitlib.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(DefaultBranch)},
	})
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	return &Repo{t: t, Root: root, Repo: repo, wt: wt}
}

// Path joins a slash separated repository path onto Root.
func (r *Repo) Path(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

func (r *Repo) GitDir() string {
	return filepath.Join(r.Root, ".git")
}

func (r *Repo) WriteFile(rel, content string) {
	r.t.Helper()
	p := r.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		r.t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", rel, err)
	}
}

func (r *Repo) RemoveFile(rel string) {
	r.t.Helper()
	if err := os.Remove(r.Path(rel)); err != nil {
		r.t.Fatalf("remove %s: %v", rel, err)
	}
}

// Add stages rel.
func (r *Repo) Add(rel string) {
	r.t.Helper()
	if _, err := r.wt.Add(rel); err != nil {
		r.t.Fatalf("add %s: %v", rel, err)
	}
}

// Remove stages the deletion of rel and removes it from disk.
func (r *Repo) Remove(rel string) {
	r.t.Helper()
	if _, err := r.wt.Remove(rel); err != nil {
		r.t.Fatalf("rm %s: %v", rel, err)
	}
}

// Rename stages a move of oldRel to newRel, like git mv.
func (r *Repo) Rename(oldRel, newRel string) {
	r.t.Helper()
	data, err := os.ReadFile(r.Path(oldRel))
	if err != nil {
		r.t.Fatalf("read %s: %v", oldRel, err)
	}
	r.WriteFile(newRel, string(data))
	r.Remove(oldRel)
	r.Add(newRel)
}

// CommitFiles writes, stages and commits the given files.
func (r *Repo) CommitFiles(msg string, files map[string]string) plumbing.Hash {
	r.t.Helper()
	for rel, content := range files {
		r.WriteFile(rel, content)
		r.Add(rel)
	}
	return r.Commit(msg)
}

func (r *Repo) Commit(msg string) plumbing.Hash {
	r.t.Helper()
	sig := &object.Signature{
		Name:  "Test",
		Email: "test@example.com",
		When:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	h, err := r.wt.Commit(msg, &gitlib.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		r.t.Fatalf("commit: %v", err)
	}
	return h
}

// Branch creates a local branch pointing at HEAD without switching to it.
func (r *Repo) Branch(name string) {
	r.t.Helper()
	head, err := r.Repo.Head()
	if err != nil {
		r.t.Fatalf("head: %v", err)
	}
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())
	if err := r.Repo.Storer.SetReference(ref); err != nil {
		r.t.Fatalf("branch %s: %v", name, err)
	}
}

// Checkout switches branches, rewriting the working tree.
func (r *Repo) Checkout(name string) {
	r.t.Helper()
	err := r.wt.Checkout(&gitlib.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)})
	if err != nil {
		r.t.Fatalf("checkout %s: %v", name, err)
	}
}

func (r *Repo) SetRemote(name, url string) {
	r.t.Helper()
	_, err := r.Repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}})
	if err != nil {
		r.t.Fatalf("remote %s: %v", name, err)
	}
}

// Pack moves every reachable object into a pack file and deletes the loose
// copies, leaving the object store as git gc would.
func (r *Repo) Pack() {
	r.t.Helper()
	if err := r.Repo.RepackObjects(&gitlib.RepackConfig{}); err != nil {
		r.t.Fatalf("repack: %v", err)
	}
	objects := filepath.Join(r.GitDir(), "objects")
	entries, err := os.ReadDir(objects)
	if err != nil {
		r.t.Fatalf("read objects: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() && len(e.Name()) == 2 {
			if err := os.RemoveAll(filepath.Join(objects, e.Name())); err != nil {
				r.t.Fatalf("remove loose objects: %v", err)
			}
		}
	}
}

// LooseObjectPath is where the loose copy of h lives.
func (r *Repo) LooseObjectPath(h plumbing.Hash) string {
	hex := h.String()
	return filepath.Join(r.GitDir(), "objects", hex[:2], hex[2:])
}

// HeadHash returns the commit HEAD resolves to.
func (r *Repo) HeadHash() plumbing.Hash {
	r.t.Helper()
	head, err := r.Repo.Head()
	if err != nil {
		r.t.Fatalf("head: %v", err)
	}
	return head.Hash()
}
