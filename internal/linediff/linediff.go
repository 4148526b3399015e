// Package linediff computes line-level differences for side-by-side
// annotation of a committed blob against the working copy.
package linediff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

type Op uint8

const (
	Equal Op = iota
	Delete
	Insert
)

func (o Op) String() string {
	switch o {
	case Equal:
		return "equal"
	case Delete:
		return "delete"
	case Insert:
		return "insert"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Change describes one line. OldLine and NewLine are 1-based; 0 means the
// line has no counterpart on that side.
type Change struct {
	OldLine int
	NewLine int
	Op      Op
}

// Span is an inclusive, 1-based line range.
type Span struct {
	Start int
	End   int
}

// Compute diffs old against new. Replaced blocks are reported as deletions
// followed by insertions.
func Compute(old, new []string) []Change {
	m := difflib.NewMatcherWithJunk(old, new, false, nil)
	var changes []Change
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for k := 0; k < op.I2-op.I1; k++ {
				changes = append(changes, Change{OldLine: op.I1 + k + 1, NewLine: op.J1 + k + 1, Op: Equal})
			}
		case 'd', 'r', 'i':
			for i := op.I1; i < op.I2; i++ {
				changes = append(changes, Change{OldLine: i + 1, Op: Delete})
			}
			for j := op.J1; j < op.J2; j++ {
				changes = append(changes, Change{NewLine: j + 1, Op: Insert})
			}
		}
	}
	return changes
}

// Spans groups consecutive deletions into ranges of the old buffer and
// consecutive insertions into ranges of the new buffer.
func Spans(changes []Change) (removed, added []Span) {
	for _, c := range changes {
		switch c.Op {
		case Delete:
			removed = extend(removed, c.OldLine)
		case Insert:
			added = extend(added, c.NewLine)
		}
	}
	return removed, added
}

func extend(spans []Span, line int) []Span {
	if n := len(spans); n > 0 && spans[n-1].End+1 == line {
		spans[n-1].End = line
		return spans
	}
	return append(spans, Span{Start: line, End: line})
}

func Count(changes []Change) (insertions, deletions int) {
	for _, c := range changes {
		switch c.Op {
		case Insert:
			insertions++
		case Delete:
			deletions++
		}
	}
	return insertions, deletions
}

// FormatStat renders the tail of git's --stat summary, e.g.
// "2 insertions(+), 1 deletion(-)". Zero counts are omitted.
func FormatStat(insertions, deletions int) string {
	var parts []string
	if insertions > 0 {
		parts = append(parts, fmt.Sprintf("%d %s(+)", insertions, plural(insertions, "insertion", "insertions")))
	}
	if deletions > 0 {
		parts = append(parts, fmt.Sprintf("%d %s(-)", deletions, plural(deletions, "deletion", "deletions")))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Unified renders hunks with the given context, without the ---/+++ header.
func Unified(old, new []string, context int) (string, error) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        terminated(old),
		B:        terminated(new),
		FromFile: "a",
		ToFile:   "b",
		Context:  context,
	})
	if err != nil {
		return "", err
	}
	// Drop the two file header lines; hunk lines may also start with "---".
	lines := strings.SplitAfterN(text, "\n", 3)
	if len(lines) < 3 {
		return "", nil
	}
	return strings.TrimRight(lines[2], "\n"), nil
}

func terminated(lines []string) []string {
	if len(lines) == 0 || strings.HasSuffix(lines[len(lines)-1], "\n") {
		return lines
	}
	out := make([]string, len(lines))
	copy(out, lines)
	out[len(out)-1] += "\n"
	return out
}

// SplitLines splits s after each newline. Unlike difflib.SplitLines it does
// not add an empty trailing line when s ends with a newline.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
