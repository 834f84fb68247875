package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/crypto-academy/academy"
	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
)

func newProgressCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "progress <user>",
		Short: "Show a user's points and recent attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			progress, err := a.Store.GetProgress(ctx, args[0])
			if err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					fmt.Fprintf(out, "%s has not completed any quizzes yet.\n", args[0])
					return nil
				}
				return err
			}
			fmt.Fprintf(out, "%s: %d points over %d quizzes, last active %s\n",
				progress.UserID, progress.TotalPoints, progress.QuizzesCompleted,
				progress.LastActivity.Local().Format(time.RFC1123))

			attempts, err := a.Store.ListAttempts(ctx, args[0], limit)
			if err != nil {
				return err
			}
			for _, at := range attempts {
				fmt.Fprintf(out, "  %s  %-24s %3d%%\n", at.CreatedAt.Local().Format(time.DateTime), at.QuizID, at.Score)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", academy.DefaultAttemptListLimit, "number of recent attempts to list")
	return cmd
}
