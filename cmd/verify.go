package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/trustfeed/internal/gate"
)

var (
	verifyTitle       string
	verifyDescription string
	verifySourceURL   string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Score a single claim with the verification oracle without storing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("verify"); err != nil {
			return err
		}
		_, v := initVerifier()

		out, err := v.Verify(cmd.Context(), verifyTitle, verifyDescription, verifySourceURL)
		if err != nil {
			return err
		}

		g := gate.New(cfg.Gate.AdmitThreshold)
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "trust score: %d%%\n", out.Percent)
		fmt.Fprintf(w, "admitted:    %t (threshold %d%%)\n", g.Admit(&out.Percent), g.Threshold())
		fmt.Fprintf(w, "oracle says verified: %t\n", out.Result.IsVerified)
		for _, d := range out.Result.MatchingDetails {
			fmt.Fprintf(w, "  + %s\n", d)
		}
		for _, d := range out.Result.Discrepancies {
			fmt.Fprintf(w, "  - %s\n", d)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyTitle, "title", "", "claim headline")
	verifyCmd.Flags().StringVar(&verifyDescription, "description", "", "claim description")
	verifyCmd.Flags().StringVar(&verifySourceURL, "source-url", "", "where the claim was found")
	_ = verifyCmd.MarkFlagRequired("title")
	_ = verifyCmd.MarkFlagRequired("description")
	rootCmd.AddCommand(verifyCmd)
}
