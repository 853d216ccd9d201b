package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/tokenledger/cli/internal/aggregator"
	"github.com/zhaobenny/tokenledger/cli/internal/output"
	"github.com/zhaobenny/tokenledger/internal/ledger"
	"github.com/zhaobenny/tokenledger/internal/model"
	"github.com/zhaobenny/tokenledger/internal/pricing"
)

func init() {
	rootCmd.AddCommand(newHistoryCmd(), newTotalsCmd(), newPricingCmd())
}

func newHistoryCmd() *cobra.Command {
	var (
		by        string
		since     string
		until     string
		timezone  string
		jsonOut   bool
		breakdown bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved usage grouped by day, month, session or model",
		Example: `  tokenledger history
  tokenledger history --by month --json
  tokenledger history --by session --since 20250101 --breakdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts aggregator.Options

			if timezone != "" {
				loc, err := time.LoadLocation(timezone)
				if err != nil {
					return fmt.Errorf("invalid timezone: %s", timezone)
				}
				opts.Timezone = loc
			}
			if since != "" {
				t, err := parseDay("since", since, opts.Timezone)
				if err != nil {
					return err
				}
				opts.Since = t
			}
			if until != "" {
				t, err := parseDay("until", until, opts.Timezone)
				if err != nil {
					return err
				}
				// Include the entire day
				opts.Until = t.Add(24*time.Hour - time.Nanosecond)
			}

			history, err := ledger.ReadHistory(cfg.HistoryFile)
			if err != nil {
				return err
			}

			requests := aggregator.FilterRequests(history, opts)
			if len(requests) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No usage data found.")
				return nil
			}

			var (
				results []model.AggregatedUsage
				title   string
			)
			switch by {
			case "day":
				results, title = aggregator.ByDay(requests, opts), "Date"
			case "month":
				results, title = aggregator.ByMonth(requests, opts), "Month"
			case "session":
				results, title = aggregator.BySession(requests), "Session"
			case "model":
				results, title = aggregator.ByModel(requests), "Model"
			default:
				return fmt.Errorf("unknown grouping %q, use day, month, session or model", by)
			}

			if jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), results, aggregator.CalculateTotal(results))
			}

			printer := newPrinter(cmd)
			if breakdown {
				printer.TableWithBreakdown(results, title)
			} else {
				printer.Table(results, title, true)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "day", "group by day, month, session or model")
	cmd.Flags().StringVar(&since, "since", "", "start date filter (YYYYMMDD)")
	cmd.Flags().StringVar(&until, "until", "", "end date filter (YYYYMMDD)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "timezone for date grouping (e.g., America/New_York)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "list the models used")
	return cmd
}

func newTotalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Show totals across every saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := ledger.ReadHistory(cfg.HistoryFile)
			if err != nil {
				return err
			}
			newPrinter(cmd).Totals(ledger.SumHistory(history))
			return nil
		},
	}
}

func newPricingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pricing",
		Short: "Show the pricing table in effect (USD per 1000 tokens)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			newPrinter(cmd).Pricing(pricing.Merge(pricing.Defaults(), overrides))
			return nil
		},
	}
}
