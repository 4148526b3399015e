package git

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

func (r *Repository) Branch(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return "", nil
	}
	st, err := r.backend.HeadState(ctx)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	return st.Branch, nil
}

// Branches lists local branches, sorted.
func (r *Repository) Branches(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return nil, nil
	}
	names, err := r.backend.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return names, nil
}

// SetBranch switches to name, creating it at the current commit when it does
// not exist yet. Switching to the current branch does nothing.
func (r *Repository) SetBranch(ctx context.Context, name string) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return ErrNotRepository
	}
	st, err := r.backend.HeadState(ctx)
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}
	if !st.Detached && st.Branch == name {
		return nil
	}
	names, err := r.backend.ListBranches(ctx)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	create := !slices.Contains(names, name)
	r.logger.Info("switching branch",
		slog.String("from", st.Branch),
		slog.String("to", name),
		slog.Bool("create", create),
	)
	if err := r.backend.SwitchBranch(ctx, name, create); err != nil {
		return fmt.Errorf("switch to %s: %w", name, err)
	}
	return nil
}

// ValidateBranchName applies git's ref name rules to a local branch name.
func ValidateBranchName(name string) error {
	invalid := func(reason string) error {
		return &InvalidBranchNameError{Name: name, Reason: reason}
	}
	switch {
	case name == "":
		return invalid("empty")
	case name == "@", name == "HEAD":
		return invalid("reserved name")
	case strings.HasPrefix(name, "-"):
		return invalid(`starts with "-"`)
	case strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return invalid(`starts or ends with "/"`)
	case strings.HasSuffix(name, "."):
		return invalid(`ends with "."`)
	case strings.HasSuffix(name, ".lock"):
		return invalid(`ends with ".lock"`)
	case strings.Contains(name, ".."):
		return invalid(`contains ".."`)
	case strings.Contains(name, "//"):
		return invalid(`contains "//"`)
	case strings.Contains(name, "@{"):
		return invalid(`contains "@{"`)
	}
	for _, c := range name {
		if c < 0x20 || c == 0x7f {
			return invalid("contains a control character")
		}
		if strings.ContainsRune(" ~^:?*[\\", c) {
			return invalid(fmt.Sprintf("contains %q", c))
		}
	}
	for part := range strings.SplitSeq(name, "/") {
		if strings.HasPrefix(part, ".") {
			return invalid(`a component starts with "."`)
		}
		if strings.HasSuffix(part, ".lock") {
			return invalid(`a component ends with ".lock"`)
		}
	}
	return nil
}
