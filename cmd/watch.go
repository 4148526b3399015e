package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitstate-go/internal/git"
	"github.com/thiagokokada/gitstate-go/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var poll bool
	c := &cobra.Command{
		Use:   "watch [path]",
		Short: "Print repository changes as they happen",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.open(pathArg(args, 0))
			if err != nil {
				return err
			}
			if !repo.IsRepository() {
				return fmt.Errorf("%s: %w", repo.Root(), git.ErrNotRepository)
			}
			w, err := watch.New(repo.GitDir(), watch.Options{
				Poll:         poll || a.cfg.Watch.Poll,
				PollInterval: a.cfg.Watch.PollInterval.Duration,
				Debounce:     a.cfg.Watch.Debounce.Duration,
				Logger:       a.logger,
			})
			if err != nil {
				return err
			}
			defer w.Close()

			ctx := cmd.Context()
			if err := w.Start(ctx); err != nil {
				return err
			}
			a.logger.Debug("watching", slog.String("git_dir", repo.GitDir()), slog.Bool("polling", w.Polling()))

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-w.Events():
					if !ok {
						return nil
					}
					fmt.Fprintf(out, "%s %s\n", ev.Kind, strings.Join(ev.Paths, " "))
					if !ev.Kind.Has(watch.HeadChanged) {
						continue
					}
					repo.Refresh()
					branch, err := repo.Branch(ctx)
					if err != nil {
						a.logger.Warn("read branch", slog.Any("error", err))
						continue
					}
					fmt.Fprintf(out, "branch %s\n", branch)
				}
			}
		},
	}
	c.Flags().BoolVar(&poll, "poll", false, "poll instead of using filesystem notifications")
	return c
}
