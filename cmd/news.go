package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/store"
)

var (
	newsLimit    int
	newsMinScore int
	newsSince    string
	newsQuery    string
)

var newsCmd = &cobra.Command{
	Use:   "news [id]",
	Short: "List stored news, or show one record by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		w := cmd.OutOrStdout()
		if len(args) == 1 {
			n, err := st.GetNews(ctx, args[0])
			if err != nil {
				return err
			}
			printNewsDetail(w, n)
			return nil
		}

		filter := store.NewsFilter{
			MinTrustScore: newsMinScore,
			TitleContains: newsQuery,
			Limit:         newsLimit,
		}
		if newsSince != "" {
			d, err := time.ParseDuration(newsSince)
			if err != nil {
				return eris.Wrapf(err, "parse --since %q", newsSince)
			}
			since := time.Now().UTC().Add(-d)
			filter.Since = &since
		}

		list, err := st.ListNews(ctx, filter)
		if err != nil {
			return err
		}
		return printNewsTable(w, list)
	},
}

func init() {
	newsCmd.Flags().IntVar(&newsLimit, "limit", 20, "max records to list")
	newsCmd.Flags().IntVar(&newsMinScore, "min-score", 0, "only records with at least this trust score")
	newsCmd.Flags().StringVar(&newsSince, "since", "", "only records newer than this duration ago, e.g. 24h")
	newsCmd.Flags().StringVarP(&newsQuery, "query", "q", "", "title substring")
	rootCmd.AddCommand(newsCmd)
}

func printNewsTable(w io.Writer, list []model.SubmittedNews) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "no stored news")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCORE\tCREATED\tTITLE")
	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", n.ID, n.TrustScore, n.CreatedAt.Format(time.RFC3339), truncate(n.Title, 80))
	}
	return tw.Flush()
}

func printNewsDetail(w io.Writer, n *model.SubmittedNews) {
	fmt.Fprintf(w, "id:          %s\n", n.ID)
	fmt.Fprintf(w, "title:       %s\n", n.Title)
	fmt.Fprintf(w, "description: %s\n", n.Description)
	fmt.Fprintf(w, "author:      %s\n", n.Author)
	fmt.Fprintf(w, "trust score: %d\n", n.TrustScore)
	fmt.Fprintf(w, "mint price:  %d\n", n.MintPrice)
	fmt.Fprintf(w, "created:     %s\n", n.CreatedAt.Format(time.RFC3339))
}
