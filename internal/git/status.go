package git

import (
	"context"
	"fmt"

	"github.com/thiagokokada/gitstate-go/internal/git/backend"
)

type (
	StatusSet  = backend.StatusSet
	FileStatus = backend.FileStatus
	StatusCode = backend.StatusCode
)

// Status groups the changed tracked files into added, modified and removed.
func (r *Repository) Status(ctx context.Context) (StatusSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return StatusSet{}, nil
	}
	m, err := r.backend.StatusMap(ctx)
	if err != nil {
		return StatusSet{}, fmt.Errorf("status: %w", err)
	}
	return backend.NewStatusSet(m), nil
}

// ModifiedFiles lists every tracked path with a staged or unstaged change.
func (r *Repository) ModifiedFiles(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return nil, nil
	}
	files, err := r.backend.ModifiedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("modified files: %w", err)
	}
	return files, nil
}
