// Package runner executes version-control commands and captures their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrProcessFailed is matched by every *ProcessError.
var ErrProcessFailed = errors.New("process failed")

// Runner abstracts executing git operations so callers can swap in fakes.
type Runner interface {
	// Run returns stdout decoded as UTF-8 with surrounding whitespace trimmed.
	Run(ctx context.Context, dir string, args ...string) (string, error)
	// RunRaw returns stdout untouched, for blob contents and diffs.
	RunRaw(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ProcessError reports a command that exited non-zero or could not finish.
type ProcessError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	name := e.Name
	if len(e.Args) > 0 {
		name += " " + e.Args[0]
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", name, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", name, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

func (e *ProcessError) Is(target error) bool { return target == ErrProcessFailed }

// ExitCode extracts the exit status from an error returned by a Runner.
func ExitCode(err error) (int, bool) {
	var pe *ProcessError
	if errors.As(err, &pe) && pe.ExitCode >= 0 {
		return pe.ExitCode, true
	}
	return 0, false
}

// IsQuietExit1 reports an exit status of 1 without any stderr output, which
// git uses for "nothing found" (config --get, rev-parse -q, symbolic-ref -q).
func IsQuietExit1(err error) bool {
	var pe *ProcessError
	return errors.As(err, &pe) && pe.ExitCode == 1 && pe.Stderr == ""
}

// Exec runs an executable found in PATH.
type Exec struct {
	Binary  string
	Timeout time.Duration
	Env     []string
}

func New(binary string, timeout time.Duration) *Exec {
	if strings.TrimSpace(binary) == "" {
		binary = "git"
	}
	return &Exec{
		Binary:  binary,
		Timeout: timeout,
		// Keep porcelain markers stable and avoid taking the index lock on reads.
		Env: []string{"LC_ALL=C", "GIT_OPTIONAL_LOCKS=0"},
	}
}

func (e *Exec) Run(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := e.RunRaw(ctx, dir, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(out), "�")), nil
}

func (e *Exec) RunRaw(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), e.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		pe := &ProcessError{
			Name:     filepath.Base(e.Binary),
			Args:     args,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			pe.Err = ctxErr
			return nil, pe
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			pe.ExitCode = exitErr.ExitCode()
		}
		return nil, pe
	}
	return stdout.Bytes(), nil
}
