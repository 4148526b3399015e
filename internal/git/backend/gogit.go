package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/thiagokokada/gitstate-go/internal/linediff"
)

// GoGit goes through go-git, which also reads packed objects.
type GoGit struct {
	root string
	repo *gitlib.Repository
}

func OpenGoGit(root string) (*GoGit, error) {
	repo, err := gitlib.PlainOpenWithOptions(root, &gitlib.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, err
	}
	return &GoGit{root: root, repo: repo}, nil
}

func (g *GoGit) Name() string     { return "gogit" }
func (g *GoGit) RepoPath() string { return g.root }

func (g *GoGit) HeadState(context.Context) (HeadState, error) {
	ref, err := g.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		sym, err := g.repo.Storer.Reference(plumbing.HEAD)
		if err != nil {
			return HeadState{}, err
		}
		if sym.Type() == plumbing.SymbolicReference {
			return HeadState{Branch: sym.Target().Short()}, nil
		}
		return HeadState{}, fmt.Errorf("HEAD is neither symbolic nor resolvable")
	}
	if err != nil {
		return HeadState{}, err
	}
	st := HeadState{Hash: ref.Hash().String()}
	if ref.Name().IsBranch() {
		st.Branch = ref.Name().Short()
	} else {
		st.Branch = "HEAD"
		st.Detached = true
	}
	return st, nil
}

func (g *GoGit) ListBranches(context.Context) ([]string, error) {
	iter, err := g.repo.Branches()
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

func (g *GoGit) SwitchBranch(_ context.Context, name string, create bool) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&gitlib.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: create,
		Keep:   true,
	})
}

func (g *GoGit) RemoteURL(_ context.Context, remote string) (string, error) {
	r, err := g.repo.Remote(remote)
	if errors.Is(err, gitlib.ErrRemoteNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if urls := r.Config().URLs; len(urls) > 0 {
		return urls[0], nil
	}
	return "", nil
}

func (g *GoGit) StatusMap(context.Context) (map[string]FileStatus, error) {
	wt, err := g.repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}
	out := make(map[string]FileStatus, len(status))
	for path, st := range status {
		fs := FileStatus{Staging: StatusCode(st.Staging), Worktree: StatusCode(st.Worktree)}
		if fs.Changed() {
			out[path] = fs
		}
	}
	return out, nil
}

func (g *GoGit) ModifiedFiles(ctx context.Context) ([]string, error) {
	m, err := g.StatusMap(ctx)
	if err != nil {
		return nil, err
	}
	return ChangedPaths(m), nil
}

func (g *GoGit) IndexBlob(_ context.Context, path string) ([]string, bool, error) {
	idx, err := g.repo.Storer.Index()
	if err != nil {
		return nil, false, err
	}
	entry, err := idx.Entry(path)
	if errors.Is(err, gitindex.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	blob, err := object.GetBlob(g.repo.Storer, entry.Hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, false, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, err
	}
	return linediff.SplitLines(string(data)), true, nil
}
