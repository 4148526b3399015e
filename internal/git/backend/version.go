package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/thiagokokada/gitstate-go/internal/git/runner"
)

// Oldest git the cli backend talks to. GIT_OPTIONAL_LOCKS appeared in 2.15
// and without it every status call rewrites the index.
var minGitVersion = gitVersion{major: 2, minor: 15, patch: 0}

type gitVersion struct {
	major int
	minor int
	patch int
}

func MinGitVersion() string {
	return minGitVersion.String()
}

func (v gitVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

func (v gitVersion) less(other gitVersion) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}

// parseGitVersionOutput accepts the usual vendor variants:
//
//	git version 2.44.0
//	git version 2.39.3 (Apple Git-146)
//	git version 2.39.3.windows.1
func parseGitVersionOutput(out string) (gitVersion, bool) {
	s := strings.TrimSpace(out)
	s = strings.TrimSpace(strings.TrimPrefix(s, "git version"))
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return gitVersion{}, false
	}
	s = s[start:]
	end := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if end >= 0 {
		s = s[:end]
	}
	parts := strings.Split(strings.Trim(s, "."), ".")
	if len(parts) < 2 {
		return gitVersion{}, false
	}
	var nums [3]int
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			if i < 2 {
				return gitVersion{}, false
			}
			break
		}
		nums[i] = n
	}
	return gitVersion{major: nums[0], minor: nums[1], patch: nums[2]}, true
}

func validateGitVersionOutput(out string) error {
	got, ok := parseGitVersionOutput(out)
	if !ok {
		return fmt.Errorf("unable to parse git version output: %q", strings.TrimSpace(out))
	}
	if got.less(minGitVersion) {
		return fmt.Errorf("git %s is too old; gitstate requires git >= %s", got, minGitVersion)
	}
	return nil
}

type versionResult struct {
	out string
	err error
}

var versionCache sync.Map // binary -> versionResult

// GitVersion runs `git --version` through run. Results for an *runner.Exec
// are cached per binary.
func GitVersion(ctx context.Context, run runner.Runner) (string, error) {
	res := checkVersion(ctx, run)
	return res.out, res.err
}

func checkVersion(ctx context.Context, run runner.Runner) versionResult {
	e, cacheable := run.(*runner.Exec)
	if cacheable {
		if v, ok := versionCache.Load(e.Binary); ok {
			return v.(versionResult)
		}
	}
	out, err := run.Run(ctx, "", "--version")
	res := versionResult{out: out}
	if err != nil {
		res.err = fmt.Errorf("git --version: %w", err)
	} else {
		res.err = validateGitVersionOutput(out)
	}
	// Cancellation says nothing about the binary; retry next time.
	if cacheable && ctx.Err() == nil {
		versionCache.Store(e.Binary, res)
	}
	return res
}
