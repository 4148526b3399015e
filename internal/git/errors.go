package git

import (
	"errors"
	"fmt"

	"github.com/thiagokokada/gitstate-go/internal/git/backend"
)

var (
	ErrNotRepository     = errors.New("not a git repository")
	ErrUnsupportedURI    = errors.New("unsupported URI scheme")
	ErrInvalidBranchName = errors.New("invalid branch name")
	ErrWorktreeCheckout  = backend.ErrWorktreeCheckout
)

// InvalidBranchNameError names the rejected branch and the rule it broke.
type InvalidBranchNameError struct {
	Name   string
	Reason string
}

func (e *InvalidBranchNameError) Error() string {
	return fmt.Sprintf("invalid branch name %q: %s", e.Name, e.Reason)
}

func (e *InvalidBranchNameError) Unwrap() error { return ErrInvalidBranchName }
