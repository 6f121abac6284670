package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/trustfeed/internal/feed"
	"github.com/sells-group/trustfeed/internal/model"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one batch of candidate headlines and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		src, err := feed.New(cfg.Feed, cfg.Resilience)
		if err != nil {
			return eris.Wrap(err, "init feed")
		}
		batch, err := src.Fetch(cmd.Context())
		if err != nil {
			return err
		}
		return writeCandidates(cmd.OutOrStdout(), batch, fetchOutput)
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(fetchCmd)
}

// writeCandidates renders a batch as json or yaml.
func writeCandidates(w io.Writer, batch []model.Candidate, format string) error {
	if batch == nil {
		batch = []model.Candidate{}
	}
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(batch); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}
