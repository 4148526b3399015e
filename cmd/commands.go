package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitstate-go/internal/buildinfo"
	"github.com/thiagokokada/gitstate-go/internal/git"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info [path]",
		Short: "Show root, branch, remote and project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open(pathArg(args, 0))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if !repo.IsRepository() {
				fmt.Fprintf(out, "%s is not inside a git repository\n", repo.Root())
				return nil
			}
			branch, err := repo.Branch(ctx)
			if err != nil {
				return err
			}
			label, err := repo.Label(ctx)
			if err != nil {
				return err
			}
			remote, err := repo.RemoteURL(ctx)
			if err != nil {
				return err
			}
			project, _, err := repo.ProjectName(ctx)
			if err != nil {
				return err
			}
			rows := [][2]string{
				{"root", repo.Root()},
				{"backend", repo.BackendName()},
				{"branch", branch},
				{"label", label},
				{"remote", remote},
				{"project", project},
				{"browsable", fmt.Sprint(git.IsBrowsable(remote))},
			}
			for _, row := range rows {
				fmt.Fprintf(out, "%-10s %s\n", row[0]+":", row[1])
			}
			return nil
		},
	}
}

func newBranchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "branch [path]",
		Short: "Print the current branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open(pathArg(args, 0))
			if err != nil {
				return err
			}
			branch, err := repo.Branch(cmd.Context())
			if err != nil {
				return err
			}
			if branch != "" {
				fmt.Fprintln(cmd.OutOrStdout(), branch)
			}
			return nil
		},
	}
}

func newBranchesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "branches [path]",
		Short: "List local branches, marking the current one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open(pathArg(args, 0))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			current, err := repo.Branch(ctx)
			if err != nil {
				return err
			}
			names, err := repo.Branches(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				marker := " "
				if name == current {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

func newSwitchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <branch> [path]",
		Short: "Switch to a branch, creating it when missing",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open(pathArg(args, 1))
			if err != nil {
				return err
			}
			if err := repo.SetBranch(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "on %s\n", args[0])
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [path]",
		Short: "List added, modified and removed files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open(pathArg(args, 0))
			if err != nil {
				return err
			}
			status, err := repo.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printStatus(out, status, newStatusStyles(out, useColor(a.cfg.Diff.Color, out)))
			return nil
		},
	}
}

func printStatus(w io.Writer, s git.StatusSet, st statusStyles) {
	if s.Empty() {
		fmt.Fprintln(w, st.muted.Render("clean"))
		return
	}
	groups := []struct {
		mark  string
		style func(...string) string
		paths []string
	}{
		{"A", st.added.Render, s.Added},
		{"M", st.modified.Render, s.Modified},
		{"D", st.removed.Render, s.Removed},
	}
	for _, g := range groups {
		for _, p := range g.paths {
			fmt.Fprintf(w, "%s %s\n", g.style(g.mark), p)
		}
	}
}

func newModifiedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "modified [path]",
		Short: "List files with staged or unstaged changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open(pathArg(args, 0))
			if err != nil {
				return err
			}
			files, err := repo.ModifiedFiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
}

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <file>",
		Short: "Summarise line changes of a file against the index",
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
			stat, ok, err := repo.Stat(cmd.Context(), file)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), stat)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.VersionWithTags())
		},
	}
}
