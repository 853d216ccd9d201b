package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/tokenledger/cli/internal/config"
)

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	var (
		history     string
		archive     string
		pricingFile string
		logFile     string
		show        bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or update the config file",
		Example: `  tokenledger config --show
  tokenledger config --set-history-file ~/ledger/history.json --archive-db ~/ledger/archive.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}

			c, err := config.Read(path)
			if err != nil {
				return err
			}

			changed := false
			set := func(flag string, dst *string, value string) {
				if cmd.Flags().Changed(flag) {
					*dst = value
					changed = true
				}
			}
			set("set-history-file", &c.HistoryFile, history)
			set("archive-db", &c.ArchiveDB, archive)
			set("pricing-file", &c.PricingFile, pricingFile)
			set("log-file", &c.LogFile, logFile)

			if changed {
				if err := config.SaveTo(path, c); err != nil {
					return fmt.Errorf("saving config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			}

			if show || !changed {
				data, err := yaml.Marshal(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&history, "set-history-file", "", "history file to store in the config")
	cmd.Flags().StringVar(&archive, "archive-db", "", "archive database path")
	cmd.Flags().StringVar(&pricingFile, "pricing-file", "", "YAML pricing table path")
	cmd.Flags().StringVar(&logFile, "log-file", "", "log file path (empty logs to stderr)")
	cmd.Flags().BoolVar(&show, "show", false, "print the config")
	return cmd
}
