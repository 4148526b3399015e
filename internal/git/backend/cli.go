package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/thiagokokada/gitstate-go/internal/git/runner"
	"github.com/thiagokokada/gitstate-go/internal/linediff"
)

// CLI talks to the repository through the git executable.
type CLI struct {
	root string
	run  runner.Runner
}

// OpenCLI checks that the git binary behind run is recent enough and returns
// a backend rooted at root.
func OpenCLI(ctx context.Context, root string, run runner.Runner) (*CLI, error) {
	if run == nil {
		run = runner.New("git", 0)
	}
	if _, err := GitVersion(ctx, run); err != nil {
		return nil, err
	}
	return &CLI{root: root, run: run}, nil
}

func (c *CLI) Name() string     { return "cli" }
func (c *CLI) RepoPath() string { return c.root }

func (c *CLI) git(ctx context.Context, args ...string) (string, error) {
	return c.run.Run(ctx, c.root, args...)
}

func (c *CLI) HeadState(ctx context.Context) (HeadState, error) {
	var st HeadState
	hash, err := c.git(ctx, "rev-parse", "-q", "--verify", "HEAD")
	switch {
	case runner.IsQuietExit1(err):
		// unborn branch
	case err != nil:
		return st, err
	default:
		st.Hash = hash
	}
	name, err := c.git(ctx, "symbolic-ref", "-q", "--short", "HEAD")
	switch {
	case runner.IsQuietExit1(err):
		st.Branch = "HEAD"
		st.Detached = true
	case err != nil:
		return st, err
	default:
		st.Branch = name
	}
	return st, nil
}

func (c *CLI) ListBranches(ctx context.Context) ([]string, error) {
	out, err := c.git(ctx, "branch", "--list", "--no-color")
	if err != nil {
		return nil, err
	}
	return parseBranchList(out), nil
}

// parseBranchList reads `git branch --list`. The first two columns hold the
// current (*) and other-worktree (+) markers.
func parseBranchList(out string) []string {
	var names []string
	for line := range strings.SplitSeq(out, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "*+"))
		if line == "" || strings.HasPrefix(line, "(") {
			continue
		}
		names = append(names, line)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func (c *CLI) SwitchBranch(ctx context.Context, name string, create bool) error {
	args := []string{"checkout", "-q"}
	if create {
		args = append(args, "-b", name)
	} else {
		args = append(args, name, "--")
	}
	_, err := c.git(ctx, args...)
	return err
}

func (c *CLI) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := c.git(ctx, "config", "--get", "remote."+remote+".url")
	if runner.IsQuietExit1(err) {
		return "", nil
	}
	return out, err
}

func (c *CLI) StatusMap(ctx context.Context) (map[string]FileStatus, error) {
	out, err := c.run.RunRaw(ctx, c.root, "status", "--porcelain=v2", "-z", "--untracked-files=no")
	if err != nil {
		return nil, err
	}
	m, err := parseStatusPorcelainV2(out)
	if err != nil {
		return nil, fmt.Errorf("parse git status: %w", err)
	}
	return m, nil
}

// parseStatusPorcelainV2 reads NUL-separated `git status --porcelain=v2 -z`.
//
//	1 XY sub mH mI mW hH hI path
//	2 XY sub mH mI mW hH hI Xscore path NUL origPath
//	u XY sub m1 m2 m3 mW h1 h2 h3 path
//	? path
//
// A staged rename or copy reports the new path as added; a rename also
// reports the old path as deleted.
func parseStatusPorcelainV2(out []byte) (map[string]FileStatus, error) {
	m := make(map[string]FileStatus)
	records := strings.Split(string(bytes.TrimRight(out, "\x00")), "\x00")
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if rec == "" {
			continue
		}
		switch rec[0] {
		case '1', '2':
			fields := 9
			if rec[0] == '2' {
				fields = 10
			}
			parts := strings.SplitN(rec, " ", fields)
			if len(parts) != fields || len(parts[1]) != 2 {
				return nil, fmt.Errorf("malformed record %q", rec)
			}
			path := parts[fields-1]
			st := FileStatus{Staging: porcelainCode(parts[1][0]), Worktree: porcelainCode(parts[1][1])}
			if rec[0] == '2' {
				i++
				if i >= len(records) {
					return nil, fmt.Errorf("rename of %q without source path", path)
				}
				// The other backends see a copy or rename as a new path.
				if st.Staging == Renamed || st.Staging == Copied {
					st.Staging = Added
				}
				if parts[1][0] == 'R' {
					m[records[i]] = FileStatus{Staging: Deleted, Worktree: Unmodified}
				}
			}
			m[path] = st
		case 'u':
			parts := strings.SplitN(rec, " ", 11)
			if len(parts) != 11 {
				return nil, fmt.Errorf("malformed record %q", rec)
			}
			m[parts[10]] = FileStatus{Staging: UpdatedButUnmerged, Worktree: UpdatedButUnmerged}
		default:
			// '?' untracked, '!' ignored, '#' headers
		}
	}
	return m, nil
}

func porcelainCode(b byte) StatusCode {
	switch b {
	case '.':
		return Unmodified
	case 'T':
		return Modified
	}
	return StatusCode(b)
}

func (c *CLI) ModifiedFiles(ctx context.Context) ([]string, error) {
	var paths []string
	for _, staged := range []bool{false, true} {
		args := []string{"diff", "--name-only", "--no-renames", "-z"}
		if staged {
			args = append(args, "--staged")
		}
		out, err := c.run.RunRaw(ctx, c.root, args...)
		if err != nil {
			return nil, err
		}
		for p := range strings.SplitSeq(string(out), "\x00") {
			if p != "" {
				paths = append(paths, p)
			}
		}
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

func (c *CLI) IndexBlob(ctx context.Context, path string) ([]string, bool, error) {
	out, err := c.git(ctx, "--literal-pathspecs", "ls-files", "-s", "--", path)
	if err != nil {
		return nil, false, err
	}
	hash, ok := parseLsFilesStage(out)
	if !ok {
		return nil, false, nil
	}
	data, err := c.run.RunRaw(ctx, c.root, "cat-file", "blob", hash)
	if err != nil {
		if errors.Is(err, runner.ErrProcessFailed) && ctx.Err() == nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	return linediff.SplitLines(string(data)), true, nil
}

// parseLsFilesStage picks the stage 0 hash (or the first one while merging)
// out of `git ls-files -s` lines: "<mode> <hash> <stage>\t<path>".
func parseLsFilesStage(out string) (string, bool) {
	var first string
	for line := range strings.SplitSeq(out, "\n") {
		meta, _, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			continue
		}
		if fields[2] == "0" {
			return fields[1], true
		}
		if first == "" {
			first = fields[1]
		}
	}
	return first, first != ""
}

func (c *CLI) UnifiedDiff(ctx context.Context, path string) (string, error) {
	out, err := c.git(ctx, "--literal-pathspecs", "diff", "--no-color", "--no-ext-diff", "--unified=0", "--", path)
	if err != nil {
		return "", err
	}
	return stripDiffHeader(out), nil
}

// stripDiffHeader drops everything before the first hunk: the diff --git,
// index, --- and +++ lines.
func stripDiffHeader(out string) string {
	if strings.HasPrefix(out, "@@") {
		return out
	}
	i := strings.Index(out, "\n@@")
	if i < 0 {
		return ""
	}
	return out[i+1:]
}

func (c *CLI) Stat(ctx context.Context, path string) (string, bool, error) {
	out, err := c.git(ctx, "--literal-pathspecs", "diff", "--no-color", "--stat", "--", path)
	if err != nil {
		return "", false, err
	}
	stat := parseStatSummary(out)
	return stat, stat != "", nil
}

// parseStatSummary turns the last line of `git diff --stat`,
// " 1 file changed, 2 insertions(+), 1 deletion(-)", into
// "2 insertions(+), 1 deletion(-)".
func parseStatSummary(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	last := out[strings.LastIndexByte(out, '\n')+1:]
	parts := strings.Split(last, ",")
	if len(parts) < 2 {
		return ""
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts[1:], ", ")
}
