package git

import (
	"context"
	"fmt"
	"strings"
)

// RemoteURL returns the url of the configured remote ("origin" by default),
// or "" when there is none.
func (r *Repository) RemoteURL(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remoteURLLocked(ctx)
}

func (r *Repository) remoteURLLocked(ctx context.Context) (string, error) {
	if r.backend == nil {
		return "", nil
	}
	u, err := r.backend.RemoteURL(ctx, r.remote)
	if err != nil {
		return "", fmt.Errorf("read remote %s: %w", r.remote, err)
	}
	return strings.TrimSpace(u), nil
}

// BrowsableRemoteURL returns the remote url when a browser can open it.
func (r *Repository) BrowsableRemoteURL(ctx context.Context) (string, bool, error) {
	u, err := r.RemoteURL(ctx)
	if err != nil {
		return "", false, err
	}
	if !IsBrowsable(u) {
		return "", false, nil
	}
	return u, true, nil
}

func IsBrowsable(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ProjectName derives the project from the remote url:
// "git@host:org/repo.git" and "https://host/org/repo" both give "repo".
func (r *Repository) ProjectName(ctx context.Context) (string, bool, error) {
	u, err := r.RemoteURL(ctx)
	if err != nil {
		return "", false, err
	}
	name := ProjectNameFromURL(u)
	return name, name != "", nil
}

func ProjectNameFromURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	if i := strings.LastIndexAny(u, "/:"); i >= 0 {
		u = u[i+1:]
	}
	return strings.TrimSuffix(u, ".git")
}

// Label is "project/branch", or just the branch without a remote.
func (r *Repository) Label(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return "", nil
	}
	st, err := r.backend.HeadState(ctx)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	u, err := r.remoteURLLocked(ctx)
	if err != nil {
		return "", err
	}
	if project := ProjectNameFromURL(u); project != "" {
		return project + "/" + st.Branch, nil
	}
	return st.Branch, nil
}
