package cmd

import (
	"io"
	"os"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	darkmode "github.com/thiagokokada/dark-mode-go"
)

var (
	detectDarkMode = darkmode.IsDarkMode
	isTerminal     = func(w io.Writer) bool {
		f, ok := w.(*os.File)
		if !ok {
			return false
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
)

// useColor resolves a diff.color setting against the output.
func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return isTerminal(w)
	}
}

// chromaStyle returns the named style, or github/github-dark following the
// desktop theme when name is empty.
func chromaStyle(name string) *chroma.Style {
	if name == "" {
		name = "github"
		if dark, err := detectDarkMode(); err == nil && dark {
			name = "github-dark"
		}
	}
	if st := styles.Get(name); st != nil {
		return st
	}
	return styles.Fallback
}

type statusStyles struct {
	added    lipgloss.Style
	modified lipgloss.Style
	removed  lipgloss.Style
	muted    lipgloss.Style
}

func newStatusStyles(w io.Writer, color bool) statusStyles {
	r := lipgloss.NewRenderer(w)
	if !color {
		plain := r.NewStyle()
		return statusStyles{added: plain, modified: plain, removed: plain, muted: plain}
	}
	r.SetColorProfile(termenv.ANSI256)
	return statusStyles{
		added:    r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		modified: r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		removed:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color("244")),
	}
}
