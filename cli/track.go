package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/tokenledger/cli/internal/output"
	"github.com/zhaobenny/tokenledger/internal/ledger"
	"github.com/zhaobenny/tokenledger/internal/model"
	"github.com/zhaobenny/tokenledger/internal/parser"
)

func init() {
	rootCmd.AddCommand(newTrackCmd(), newImportCmd())
}

// openLedger starts a session. Per-request reports are printed unless quiet.
func openLedger(cmd *cobra.Command, quiet bool) (*ledger.Ledger, *output.Printer) {
	printer := newPrinter(cmd)

	var reporter ledger.Reporter = printer
	if quiet {
		reporter = quietReporter{printer}
	}

	l := ledger.New(ledger.Options{
		HistoryFile: cfg.HistoryFile,
		Pricing:     overrides,
		Logger:      slog.Default(),
		Reporter:    reporter,
	})
	return l, printer
}

// quietReporter drops per-request reports but keeps the session summary
type quietReporter struct {
	*output.Printer
}

func (quietReporter) Request(model.RequestRecord) {}

func newTrackCmd() *cobra.Command {
	var (
		input, outputTokens int64
		modelName, desc     string
		quiet               bool
	)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Record a single request and save the session",
		Example: `  tokenledger track --model gpt-4 --input 150 --output 300
  tokenledger track --model claude-sonnet-4-5 --input 1200 --output 80 --desc "classify ticket"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input < 0 || outputTokens < 0 {
				return errors.New("token counts must not be negative")
			}

			l, _ := openLedger(cmd, quiet)
			defer l.Close()

			l.TrackRequest(input, outputTokens, modelName, desc)
			return l.EndSession()
		},
	}

	cmd.Flags().Int64Var(&input, "input", 0, "input (prompt) tokens")
	cmd.Flags().Int64Var(&outputTokens, "output", 0, "output (completion) tokens")
	cmd.Flags().StringVarP(&modelName, "model", "m", "default", "model name")
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "request description")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "skip the per-request report")
	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		top     int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Track every API response in a JSONL file (or stdin) as one session",
		Long: `Reads one JSON object per line and tracks the token usage it carries.
Anthropic responses (usage.input_tokens), OpenAI responses
(usage.prompt_tokens) and flat {"model","inputTokens","outputTokens"} lines
are understood. Lines without usage are skipped.

An interrupted import still saves the requests tracked so far.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			l, printer := openLedger(cmd, !verbose)
			defer l.Close()

			skipped, err := parser.Parse(ctx, r, func(u parser.Usage) error {
				l.TrackRequest(u.InputTokens, u.OutputTokens, u.Model, u.Description)
				return nil
			})
			if skipped > 0 {
				slog.Info("Skipped lines without usage", "count", skipped)
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					if cerr := l.Close(); cerr != nil {
						return fmt.Errorf("interrupted, and saving failed: %w", cerr)
					}
					return fmt.Errorf("interrupted after %d requests, session saved", l.SessionStats().RequestCount)
				}
				return err
			}

			printer.TopRequests(l.TopExpensiveRequests(top))
			return l.EndSession()
		},
	}

	cmd.Flags().IntVar(&top, "top", ledger.DefaultTopLimit, "number of most expensive requests to list")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print a report for every request")
	return cmd
}
