package backend

import (
	"context"
	"errors"
)

// ErrWorktreeCheckout is returned by backends that only move refs when a
// branch switch would require rewriting working-tree files.
var ErrWorktreeCheckout = errors.New("switching to this branch requires a working-tree checkout")

// HeadState describes HEAD. Hash is empty on an unborn branch; Branch is
// "HEAD" when detached.
type HeadState struct {
	Hash     string
	Branch   string
	Detached bool
}

// Backend abstracts access to repository data.
//
// The cli implementation shells out to the git executable, files parses the
// on-disk formats directly, and gogit goes through go-git. Callers only see
// this interface.
type Backend interface {
	Name() string
	RepoPath() string

	HeadState(ctx context.Context) (HeadState, error)
	ListBranches(ctx context.Context) ([]string, error)
	// SwitchBranch points HEAD at name, creating it from the current commit
	// first when create is set.
	SwitchBranch(ctx context.Context, name string, create bool) error
	// RemoteURL returns "" when the remote or its url is not configured.
	RemoteURL(ctx context.Context, remote string) (string, error)

	StatusMap(ctx context.Context) (map[string]FileStatus, error)
	ModifiedFiles(ctx context.Context) ([]string, error)
	// IndexBlob returns the lines of the blob staged for path. ok is false
	// when the path is not tracked or its object cannot be read.
	IndexBlob(ctx context.Context, path string) (lines []string, ok bool, err error)
}

// UnifiedDiffer is implemented by backends that render hunks natively.
type UnifiedDiffer interface {
	UnifiedDiff(ctx context.Context, path string) (string, error)
}

// Stater is implemented by backends that compute diffstats natively.
type Stater interface {
	Stat(ctx context.Context, path string) (string, bool, error)
}

// Refresher is implemented by backends holding caches.
type Refresher interface {
	Refresh()
}
