package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/roach88/qms/internal/display"
)

// NewBoardCommand creates the board command.
func NewBoardCommand(opts *RootOptions) *cobra.Command {
	var (
		plain bool
		watch time.Duration
	)
	cmd := &cobra.Command{
		Use:   "board <screen-id>",
		Short: "Render a display board",
		Long: `Render the tickets a display screen shows: every active queue bound to the
screen, serving tickets first, then waiting tickets in service order.

With --watch the board is redrawn on an interval while the cache refreshes
in the background.

Examples:
  qms board 1
  qms board 1 --watch 5s
  qms board 1 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var screenID int64
			if _, err := fmt.Sscan(args[0], &screenID); err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid screen id %q", args[0]))
			}
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				w := cmd.OutOrStdout()
				out := termenv.NewOutput(w)
				profile := termenv.Ascii
				if !plain {
					profile = out.EnvColorProfile()
				}

				draw := func() error {
					b, err := display.Build(a.cache, screenID)
					if err != nil {
						return f.Fail("build board", err)
					}
					if opts.Format == "json" {
						return f.Success(b, "")
					}
					var buf bytes.Buffer
					if err := display.Render(&buf, b, profile); err != nil {
						return err
					}
					if watch > 0 && profile != termenv.Ascii {
						out.ClearScreen()
					}
					_, err = io.Copy(w, &buf)
					return err
				}

				if watch <= 0 {
					return draw()
				}
				a.cache.StartRefresh(cmd.Context(), time.Duration(opts.Config.Cache.ReloadInterval))
				return watchLoop(cmd.Context(), watch, draw)
			})
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "no colors or styling")
	cmd.Flags().DurationVar(&watch, "watch", 0, "redraw interval (0 renders once)")
	return cmd
}

// watchLoop calls draw now and on every tick until ctx is done.
func watchLoop(ctx context.Context, every time.Duration, draw func() error) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := draw(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	var day dayValue
	cmd := &cobra.Command{
		Use:   "stats <queue-id>",
		Short: "Show per-day ticket counts of a queue",
		Example: `  qms stats 1
  qms stats 1 --day 2026-03-02 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var queueID int64
			if _, err := fmt.Sscan(args[0], &queueID); err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid queue id %q", args[0]))
			}
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				d := day.day
				if d == "" {
					d = a.svc.Today()
				}
				st, err := display.Statistics(cmd.Context(), a.store, queueID, d)
				if err != nil {
					return f.Fail("queue statistics", err)
				}
				return f.Success(st, formatQueueStats(st))
			})
		},
	}
	cmd.Flags().Var(&day, "day", "day (default today)")
	return cmd
}

func formatQueueStats(st display.QueueStats) string {
	return fmt.Sprintf(`queue %d on %s
  issued     %d (priority %d, last sequence %d)
  waiting    %d
  serving    %d %v
  missed     %d
  done       %d
  cancelled  %d
  avg wait   %.1f min`,
		st.QueueID, st.Day,
		st.Issued, st.Priority, st.LastSequence,
		st.Waiting,
		st.Serving, st.NowServing,
		st.Missed,
		st.Done,
		st.Cancelled,
		st.AverageWaitMinutes)
}
