package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/tokenledger/cli/internal/config"
	"github.com/zhaobenny/tokenledger/internal/database"
	"github.com/zhaobenny/tokenledger/internal/ledger"
)

func init() {
	rootCmd.AddCommand(newArchiveCmd(), newModelsCmd())
}

var archiveDB string

func openArchive() (*database.DB, error) {
	path := cfg.ArchiveDB
	if archiveDB != "" {
		path = archiveDB
	}

	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Copy the history file into the SQLite archive",
		Long: `Imports every session in the history file into the SQLite archive.
Sessions already archived are skipped; sessions saved again since the last
import are replaced. Archives from several machines can share one database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := ledger.ReadHistory(cfg.HistoryFile)
			if err != nil {
				return err
			}

			// The client ID identifies this machine in the archive
			if cfg.ClientID == "" {
				id, err := saveClientID()
				if err != nil {
					return fmt.Errorf("saving client ID: %w", err)
				}
				cfg.ClientID = id
			}

			hostname, _ := os.Hostname()
			if hostname == "" {
				hostname = "unknown"
			}

			db, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			imported, err := db.ImportHistory(cfg.ClientID, hostname, history)
			if err != nil {
				return err
			}
			total, err := db.SessionCount()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Archived %d sessions (%d in archive).\n", imported, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&archiveDB, "db", "", "archive database path")
	return cmd
}

func newModelsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Show archived usage per model, or per day with --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openArchive()
			if err != nil {
				return err
			}
			defer db.Close()

			printer := newPrinter(cmd)
			if days > 0 {
				results, err := db.GetUsageByDay(days)
				if err != nil {
					return err
				}
				printer.Table(results, "Date", true)
				return nil
			}

			results, err := db.ModelBreakdown()
			if err != nil {
				return err
			}
			printer.Table(results, "Model", true)
			return nil
		},
	}

	cmd.Flags().StringVar(&archiveDB, "db", "", "archive database path")
	cmd.Flags().IntVar(&days, "days", 0, "show the last N days instead of models")
	return cmd
}

// saveClientID writes a new client ID to the config file on disk
func saveClientID() (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	c, err := config.Read(path)
	if err != nil {
		return "", err
	}
	if err := config.SaveTo(path, c); err != nil {
		return "", err
	}
	return c.ClientID, nil
}
