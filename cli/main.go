// tokenledger records token usage and cost for LLM API calls and reports on
// the sessions it has saved.
//
// Usage:
//
//	# Track one request and save the session
//	tokenledger track --model gpt-4 --input 150 --output 300
//
//	# Track every response in a JSONL log
//	tokenledger import responses.jsonl
//
//	# Report saved history
//	tokenledger history --by model
//	tokenledger totals
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/tokenledger/cli/internal/config"
	"github.com/zhaobenny/tokenledger/cli/internal/output"
	"github.com/zhaobenny/tokenledger/internal/ledger"
	"github.com/zhaobenny/tokenledger/internal/log"
	"github.com/zhaobenny/tokenledger/internal/pricing"
)

const version = "0.3.0"

var (
	// Global flags
	cfgFile     string
	historyFile string
	debug       bool
	compact     bool

	// Resolved in setup
	cfg       *config.Config
	overrides pricing.Table
)

var rootCmd = &cobra.Command{
	Use:   "tokenledger",
	Short: "Token usage and cost ledger for LLM API calls",
	Long: `tokenledger records input and output token counts for LLM API calls,
prices them from a per-model rate table and keeps a JSON history of sessions.

Each track or import run is one session. Sessions are appended to the history
file when the run ends, or when it is interrupted.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.tokenledger.yaml)")
	rootCmd.PersistentFlags().StringVar(&historyFile, "history-file", "", "history file (default "+ledger.DefaultHistoryFile+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&compact, "compact", "c", false, "force compact table output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tokenledger %s\n", version)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err = config.LoadFrom(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if historyFile != "" {
		cfg.HistoryFile = historyFile
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = ledger.DefaultHistoryFile
	}

	log.Setup(cfg.LogFile, debug || cfg.Debug, cmd.ErrOrStderr())

	overrides, err = cfg.ResolvePricing()
	if err != nil {
		return fmt.Errorf("loading pricing: %w", err)
	}
	return nil
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.Path()
}

func newPrinter(cmd *cobra.Command) *output.Printer {
	return output.NewPrinter(cmd.OutOrStdout(), output.TableOptions{ForceCompact: compact})
}

// parseDay parses a YYYYMMDD flag value
func parseDay(flag, value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("20060102", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q, use YYYYMMDD", flag, value)
	}
	return t, nil
}
