package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitstate-go/internal/git"
	"github.com/thiagokokada/gitstate-go/internal/linediff"
)

func newDiffCmd(a *app) *cobra.Command {
	var (
		unified bool
		color   string
	)
	c := &cobra.Command{
		Use:   "diff <file>",
		Short: "Show changed lines of a file against the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := fileArg(args[0])
			if err != nil {
				return err
			}
			repo, err := a.open(file)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("color") {
				color = a.cfg.Diff.Color
			}
			out := cmd.OutOrStdout()
			p := newDiffPrinter(out, file, useColor(color, out), a.cfg.Diff.Style)
			if unified {
				hunks, err := repo.UnifiedDiff(cmd.Context(), file)
				if err != nil {
					return err
				}
				p.unified(hunks)
				return nil
			}
			d, err := repo.Diff(cmd.Context(), file)
			if err != nil {
				return err
			}
			p.changes(d)
			return nil
		},
	}
	c.Flags().BoolVarP(&unified, "unified", "u", false, "print zero-context hunks")
	c.Flags().StringVar(&color, "color", "auto", "colorize output: auto, always or never")
	return c
}

type diffPrinter struct {
	w      io.Writer
	styles statusStyles
	hl     *highlighter // nil without color
}

func newDiffPrinter(w io.Writer, path string, color bool, styleName string) *diffPrinter {
	p := &diffPrinter{w: w, styles: newStatusStyles(w, color)}
	if color {
		p.hl = newHighlighter(path, styleName)
	}
	return p
}

// changes prints every inserted or deleted line with its line number on the
// side it belongs to.
func (p *diffPrinter) changes(d git.FileDiff) {
	for _, ch := range d.Changes {
		switch ch.Op {
		case linediff.Delete:
			p.line(p.styles.removed.Render("-"), ch.OldLine, d.Committed[ch.OldLine-1])
		case linediff.Insert:
			p.line(p.styles.added.Render("+"), ch.NewLine, d.Working[ch.NewLine-1])
		}
	}
}

func (p *diffPrinter) line(mark string, n int, text string) {
	text = strings.TrimRight(text, "\r\n")
	fmt.Fprintf(p.w, "%s%s %s\n", mark, p.styles.muted.Render(fmt.Sprintf("%5d |", n)), p.code(text))
}

func (p *diffPrinter) unified(hunks string) {
	if hunks == "" {
		return
	}
	for line := range strings.SplitSeq(hunks, "\n") {
		code, ok := diffLineCode(line)
		switch {
		case strings.HasPrefix(line, "@@"):
			fmt.Fprintln(p.w, p.styles.muted.Render(line))
		case ok && line[0] == '+':
			fmt.Fprintln(p.w, p.styles.added.Render("+")+p.code(code))
		case ok && line[0] == '-':
			fmt.Fprintln(p.w, p.styles.removed.Render("-")+p.code(code))
		default:
			fmt.Fprintln(p.w, line)
		}
	}
}

func (p *diffPrinter) code(s string) string {
	if p.hl == nil {
		return s
	}
	return p.hl.highlight(s)
}

// diffLineCode strips the one-column marker from a hunk body line.
func diffLineCode(line string) (string, bool) {
	if line == "" || strings.HasPrefix(line, "\\ ") {
		return "", false
	}
	switch line[0] {
	case '+', '-', ' ':
		return line[1:], true
	}
	return "", false
}

type highlighter struct {
	lexer     chroma.Lexer
	style     *chroma.Style
	formatter chroma.Formatter
}

func newHighlighter(path, styleName string) *highlighter {
	return &highlighter{
		lexer:     lexerForPath(path),
		style:     chromaStyle(styleName),
		formatter: formatters.Get("terminal256"),
	}
}

func (h *highlighter) highlight(code string) string {
	if code == "" {
		return code
	}
	it, err := h.lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var b strings.Builder
	if err := h.formatter.Format(&b, h.style, it); err != nil {
		return code
	}
	return b.String()
}

func lexerForPath(path string) chroma.Lexer {
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}
