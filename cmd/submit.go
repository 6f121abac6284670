package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/trustfeed/internal/model"
)

var (
	submitTitle       string
	submitDescription string
	submitSourceURL   string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Verify a claim and store it if it clears the trust gate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "submit", false)
		if err != nil {
			return err
		}
		defer env.Close()

		sess := env.Session
		rv, err := sess.Propose(model.Candidate{
			Title:           submitTitle,
			Description:     submitDescription,
			SourceReference: submitSourceURL,
			SourceName:      "manual",
		})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		rv, err = sess.Verify(ctx, rv.Candidate.Title)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "trust score: %d%% (threshold %d%%)\n", *rv.Percent, sess.Threshold())

		rv, err = sess.Submit(ctx, rv.Candidate.Title)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "stored: %s\n", rv.NewsID)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitTitle, "title", "", "claim headline")
	submitCmd.Flags().StringVar(&submitDescription, "description", "", "claim description")
	submitCmd.Flags().StringVar(&submitSourceURL, "source-url", "", "where the claim was found")
	_ = submitCmd.MarkFlagRequired("title")
	_ = submitCmd.MarkFlagRequired("description")
	rootCmd.AddCommand(submitCmd)
}
