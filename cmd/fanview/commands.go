package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"Fanvault/internal/client/viewstate"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show live engagement for posts until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			targets, _ := cmd.Flags().GetStringSlice("targets")
			out := cmd.OutOrStdout()

			s, err := openSession(ctx, cmd, func(c viewstate.Change) {
				fmt.Fprintln(out, formatChange(c))
			})
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.view.Open(ctx, targets); err != nil {
				return fmt.Errorf("%s", describeError(err))
			}
			fmt.Fprintf(out, "watching %s as %s\n", strings.Join(targets, ", "), displayActor(s.actorID))

			refresh, _ := cmd.Flags().GetDuration("refresh")
			if refresh > 0 {
				ticker := time.NewTicker(refresh)
				defer ticker.Stop()
			loop:
				for {
					select {
					case <-ctx.Done():
						break loop
					case <-ticker.C:
						if err := s.view.Refresh(ctx, targets); err != nil && ctx.Err() == nil {
							s.logger.Warn("refresh failed", "error", err)
						}
					}
				}
			} else {
				<-ctx.Done()
			}
			s.view.Persist(cmd.Context())
			return nil
		},
	}
	cmd.Flags().StringSlice("targets", nil, "post IDs to watch")
	cmd.Flags().Duration("refresh", 0, "re-read counts from the server at this interval (0 disables)")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}

// NewLikeCmd creates the like command.
func NewLikeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <postID>",
		Short: "Toggle your like on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			postID := args[0]

			s, err := openSession(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.view.Open(ctx, []string{postID}); err != nil {
				return fmt.Errorf("%s", describeError(err))
			}

			st, err := s.view.Like(ctx, postID)
			if err != nil {
				return fmt.Errorf("%s", describeError(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatState(postID, st))
			return nil
		},
	}
}

func formatChange(c viewstate.Change) string {
	return fmt.Sprintf("[%s] %s %s", c.Source, c.Kind, formatState(c.TargetID, c.State))
}

func formatState(targetID string, st viewstate.TargetState) string {
	mark := " "
	if st.Engaged {
		mark = "*"
	}
	return fmt.Sprintf("%s %s count=%d", mark, targetID, st.Count)
}

func displayActor(actorID string) string {
	if actorID == "" {
		return "anonymous"
	}
	return actorID
}
