package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/pipeline"
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Interactively accept, reject, verify and submit headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "triage", true)
		if err != nil {
			return err
		}
		defer env.Close()

		return runTriage(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), env.Session)
	},
}

func init() {
	rootCmd.AddCommand(triageCmd)
}

// triageSession is the part of the pipeline session the loop drives.
type triageSession interface {
	Threshold() int
	Refresh(ctx context.Context) (pipeline.RefreshResult, error)
	Pending() []model.Candidate
	Accept(title string) bool
	Reject(title string) bool
	Propose(c model.Candidate) (model.Review, error)
	Verify(ctx context.Context, title string) (model.Review, error)
	Submit(ctx context.Context, title string) (model.Review, error)
	Reviews() []model.Review
}

const triageHelp = `commands:
  refresh                         fetch a new batch of candidates
  list                            show pending candidates
  accept <n> | a <n>              accept pending candidate n
  reject <n> | r <n>              reject pending candidate n
  reviews                         show accepted candidates
  verify <n> | v <n>              score accepted candidate n
  submit <n> | s <n>              store accepted candidate n if it clears the gate
  drop <n>                        withdraw accepted candidate n
  claim <title> | <description> | <source url>
                                  add your own claim for review
  help                            show this message
  quit                            exit`

// runTriage reads one command per line from in until quit, EOF or ctx is
// done. Errors from the session are printed and never end the loop.
func runTriage(ctx context.Context, in io.Reader, out io.Writer, sess triageSession) error {
	fmt.Fprintf(out, "trustfeed triage (trust threshold %d%%)\n", sess.Threshold())
	refresh(ctx, out, sess)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(cmd) {
		case "":
		case "help", "?":
			fmt.Fprintln(out, triageHelp)
		case "quit", "q", "exit":
			return nil
		case "refresh":
			refresh(ctx, out, sess)
		case "list", "ls":
			printPending(out, sess.Pending())
		case "reviews":
			printReviews(out, sess.Reviews(), sess.Threshold())
		case "accept", "a":
			if c, ok := pick(out, sess.Pending(), arg); ok {
				if sess.Accept(c.Title) {
					fmt.Fprintf(out, "accepted: %s\n", c.Title)
				} else {
					fmt.Fprintf(out, "no longer pending: %s\n", c.Title)
				}
			}
		case "reject", "r":
			if c, ok := pick(out, sess.Pending(), arg); ok {
				if sess.Reject(c.Title) {
					fmt.Fprintf(out, "rejected: %s\n", c.Title)
				} else {
					fmt.Fprintf(out, "no longer pending: %s\n", c.Title)
				}
			}
		case "drop":
			if r, ok := pickReview(out, sess.Reviews(), arg); ok {
				if sess.Reject(r.Candidate.Title) {
					fmt.Fprintf(out, "withdrawn: %s\n", r.Candidate.Title)
				} else {
					fmt.Fprintf(out, "cannot withdraw: %s\n", r.Candidate.Title)
				}
			}
		case "verify", "v":
			if r, ok := pickReview(out, sess.Reviews(), arg); ok {
				rv, err := sess.Verify(ctx, r.Candidate.Title)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				printScore(out, rv, sess.Threshold())
			}
		case "submit", "s":
			if r, ok := pickReview(out, sess.Reviews(), arg); ok {
				rv, err := sess.Submit(ctx, r.Candidate.Title)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "submitted: %s (id %s)\n", rv.Candidate.Title, rv.NewsID)
			}
		case "claim":
			parts := strings.Split(arg, "|")
			for len(parts) < 3 {
				parts = append(parts, "")
			}
			rv, err := sess.Propose(model.Candidate{
				Title:           parts[0],
				Description:     parts[1],
				SourceReference: parts[2],
				SourceName:      "manual",
			})
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "claim added for review: %s\n", rv.Candidate.Title)
		default:
			fmt.Fprintf(out, "unknown command %q (try help)\n", cmd)
		}
	}
}

func refresh(ctx context.Context, out io.Writer, sess triageSession) {
	res, err := sess.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(out, "could not fetch candidates: %v\n", err)
		return
	}
	fmt.Fprintf(out, "fetched %d, %d pending\n", res.Fetched, res.Pending)
	printPending(out, sess.Pending())
}

func printPending(out io.Writer, pending []model.Candidate) {
	if len(pending) == 0 {
		fmt.Fprintln(out, "no pending candidates")
		return
	}
	for i, c := range pending {
		fmt.Fprintf(out, "%3d. %s\n", i+1, c.Title)
		fmt.Fprintf(out, "     %s\n", truncate(c.Description, 160))
		if c.SourceName != "" {
			fmt.Fprintf(out, "     source: %s\n", c.SourceName)
		}
	}
}

func printReviews(out io.Writer, reviews []model.Review, threshold int) {
	if len(reviews) == 0 {
		fmt.Fprintln(out, "nothing accepted yet")
		return
	}
	for i, r := range reviews {
		score := "-"
		if r.Percent != nil {
			score = fmt.Sprintf("%d%%", *r.Percent)
			if !r.Admitted {
				score += fmt.Sprintf(" (below %d%%)", threshold)
			}
		}
		line := fmt.Sprintf("%3d. [%s] %s  score %s", i+1, r.State, r.Candidate.Title, score)
		if r.NewsID != "" {
			line += "  id " + r.NewsID
		}
		fmt.Fprintln(out, line)
		if r.LastError != "" {
			fmt.Fprintf(out, "     last error: %s\n", r.LastError)
		}
	}
}

func printScore(out io.Writer, r model.Review, threshold int) {
	if r.Percent == nil {
		fmt.Fprintf(out, "%s: no score\n", r.Candidate.Title)
		return
	}
	verdict := "clears the gate"
	if !r.Admitted {
		verdict = fmt.Sprintf("below the %d%% threshold", threshold)
	}
	fmt.Fprintf(out, "%s: trust score %d%% (%s)\n", r.Candidate.Title, *r.Percent, verdict)
	if r.Result != nil {
		for _, d := range r.Result.MatchingDetails {
			fmt.Fprintf(out, "  + %s\n", d)
		}
		for _, d := range r.Result.Discrepancies {
			fmt.Fprintf(out, "  - %s\n", d)
		}
	}
}

func pick(out io.Writer, pending []model.Candidate, arg string) (model.Candidate, bool) {
	i, ok := index(out, arg, len(pending))
	if !ok {
		return model.Candidate{}, false
	}
	return pending[i], true
}

func pickReview(out io.Writer, reviews []model.Review, arg string) (model.Review, bool) {
	i, ok := index(out, arg, len(reviews))
	if !ok {
		return model.Review{}, false
	}
	return reviews[i], true
}

func index(out io.Writer, arg string, n int) (int, bool) {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 1 || i > n {
		fmt.Fprintf(out, "pick a number between 1 and %d\n", n)
		return 0, false
	}
	return i - 1, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
