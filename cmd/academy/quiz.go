package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/quiz"
)

func newQuizCmd(opts *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "quiz <slug>",
		Short: "Take a quiz in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.NewSession(args[0], userID)
			if err != nil {
				return fmt.Errorf("%s", errs.UserMessage(err))
			}
			return runQuiz(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "local", "user to record progress for")
	return cmd
}

// runQuiz drives session from line-based input. Each question accepts an
// option number; after the answer is revealed, an empty line moves on.
// When recording the result fails the user may retry or quit.
func runQuiz(ctx context.Context, session *quiz.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	readLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	q := session.Quiz()
	fmt.Fprintf(out, "%s (%d questions)\n", q.Title, len(q.Questions))

	for {
		snap := session.Snapshot()
		if snap.Completed {
			return nil
		}
		current := snap.Current

		if !snap.Revealed {
			fmt.Fprintf(out, "\n[%d/%d] %s\n", snap.CurrentIndex+1, snap.Total, current.Prompt)
			for i, o := range current.Options {
				fmt.Fprintf(out, "  %d) %s\n", i+1, o)
			}
			fmt.Fprint(out, "> ")

			line, ok := readLine()
			if !ok {
				return errors.New("quiz abandoned")
			}
			n, err := strconv.Atoi(line)
			if err != nil || n < 1 || n > len(current.Options) {
				fmt.Fprintf(out, "Enter a number between 1 and %d.\n", len(current.Options))
				continue
			}
			if err := session.SelectAnswer(current.Options[n-1]); err != nil {
				fmt.Fprintln(out, errs.UserMessage(err))
				continue
			}
			session.RevealFeedback()

			selected := current.Options[n-1]
			if current.IsCorrect(selected) {
				fmt.Fprintln(out, "Correct!")
			} else {
				fmt.Fprintf(out, "Not quite. The answer is %q.\n", current.CorrectAnswer)
			}
			if fb := current.FeedbackFor(selected); fb != "" {
				fmt.Fprintln(out, fb)
			}
			continue
		}

		if snap.Last {
			fmt.Fprint(out, "Press Enter to finish. ")
		} else {
			fmt.Fprint(out, "Press Enter to continue. ")
		}
		if _, ok := readLine(); !ok {
			return errors.New("quiz abandoned")
		}

		result, err := session.Advance(ctx)
		for err != nil && !errors.Is(err, errs.ErrValidation) && !errors.Is(err, errs.ErrInvalidState) {
			fmt.Fprintln(out, errs.UserMessage(err))
			fmt.Fprint(out, "Retry? [Y/n] ")
			answer, ok := readLine()
			if !ok || strings.EqualFold(answer, "n") {
				return err
			}
			result, err = session.Advance(ctx)
		}
		if err != nil {
			fmt.Fprintln(out, errs.UserMessage(err))
			continue
		}
		if result != nil {
			fmt.Fprintf(out, "\nDone! You scored %d%% (%d of %d correct).\n", result.Score, result.CorrectCount, result.Total)
		}
	}
}
