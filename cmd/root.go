package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/trustfeed/internal/config"
)

// cfg is loaded once per invocation, before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "trustfeed",
	Short:         "Triage headlines, verify them and keep the ones that clear the trust gate",
	Long:          "Fetches candidate headlines, lets a user accept or reject each one, scores accepted claims with a verification oracle and stores those whose trust score meets the threshold.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyLogFlags(&loaded.Log, cmd.Flags())
		if err := config.InitLogger(loaded.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

// applyLogFlags lets --log-level and --log-format win over the file and
// environment, but only when given explicitly.
func applyLogFlags(lc *config.LogConfig, flags *pflag.FlagSet) {
	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		lc.Level = f.Value.String()
	}
	if f := flags.Lookup("log-format"); f != nil && f.Changed {
		lc.Format = f.Value.String()
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "json", "log format: json or console")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "trustfeed:", err)
		os.Exit(1)
	}
}
