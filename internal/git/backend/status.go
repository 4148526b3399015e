package backend

import (
	"slices"
)

// StatusCode uses the same letters as git's short status and go-git.
type StatusCode byte

const (
	Unmodified         StatusCode = ' '
	Untracked          StatusCode = '?'
	Modified           StatusCode = 'M'
	Added              StatusCode = 'A'
	Deleted            StatusCode = 'D'
	Renamed            StatusCode = 'R'
	Copied             StatusCode = 'C'
	UpdatedButUnmerged StatusCode = 'U'
)

func (c StatusCode) String() string {
	return string(rune(c))
}

// FileStatus is the state of one path in the index (Staging) and in the
// working tree (Worktree).
type FileStatus struct {
	Staging  StatusCode
	Worktree StatusCode
}

// Changed reports whether either side differs from its base.
func (s FileStatus) Changed() bool {
	return isChange(s.Staging) || isChange(s.Worktree)
}

func isChange(c StatusCode) bool {
	return c != Unmodified && c != Untracked && c != 0
}

// StatusSet groups changed paths into three disjoint, sorted lists.
type StatusSet struct {
	Added    []string
	Modified []string
	Removed  []string
}

func (s StatusSet) Empty() bool {
	return len(s.Added) == 0 && len(s.Modified) == 0 && len(s.Removed) == 0
}

// NewStatusSet classifies a status map. A path staged as new is added even if
// it changed again in the working tree; a deletion on either side wins over a
// modification; untracked paths are ignored.
func NewStatusSet(m map[string]FileStatus) StatusSet {
	var set StatusSet
	for path, st := range m {
		switch {
		case st.Staging == Added:
			set.Added = append(set.Added, path)
		case st.Staging == Deleted || st.Worktree == Deleted:
			set.Removed = append(set.Removed, path)
		case st.Changed():
			set.Modified = append(set.Modified, path)
		}
	}
	slices.Sort(set.Added)
	slices.Sort(set.Modified)
	slices.Sort(set.Removed)
	return set
}

// ChangedPaths lists every tracked path with a staged or unstaged change,
// sorted.
func ChangedPaths(m map[string]FileStatus) []string {
	var paths []string
	for path, st := range m {
		if st.Changed() {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths
}
