package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/zhaobenny/tokenledger/internal/ledger"
	"github.com/zhaobenny/tokenledger/internal/model"
	"github.com/zhaobenny/tokenledger/internal/pricing"
)

const ruleWidth = 60

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
}

// shouldUseCompact determines if compact mode should be used
func shouldUseCompact(opts TableOptions) bool {
	if opts.ForceCompact {
		return true
	}
	return getTerminalWidth() < compactThreshold
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	return humanize.Comma(n)
}

// FormatCost formats a cost value as currency with ledger precision
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.6f", cost)
}

// shortenSessionID truncates session IDs to their first 8 chars
func shortenSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Printer writes human-readable reports. It satisfies ledger.Reporter.
type Printer struct {
	w       io.Writer
	heading lipgloss.Style
	muted   lipgloss.Style
	opts    TableOptions
}

var _ ledger.Reporter = (*Printer)(nil)

// NewPrinter creates a Printer writing to w. Styling is dropped when w is not
// a color terminal.
func NewPrinter(w io.Writer, opts TableOptions) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		heading: r.NewStyle().Bold(true),
		muted:   r.NewStyle().Faint(true),
		opts:    opts,
	}
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) section(title string) {
	p.printf("\n%s\n%s\n%s\n", strings.Repeat("=", ruleWidth), p.heading.Render(title), strings.Repeat("=", ruleWidth))
}

func (p *Printer) rule() {
	p.printf("%s\n\n", strings.Repeat("=", ruleWidth))
}

// Request prints one tracked request
func (p *Printer) Request(rec model.RequestRecord) {
	p.section("REQUEST")
	p.printf("Time:          %s\n", rec.Timestamp.Local().Format(time.DateTime))
	p.printf("Model:         %s\n", rec.Model)
	if rec.Description != "" {
		p.printf("Description:   %s\n", rec.Description)
	}
	p.printf("\nInput tokens:  %s\n", FormatNumber(rec.InputTokens))
	p.printf("Output tokens: %s\n", FormatNumber(rec.OutputTokens))
	p.printf("Total tokens:  %s\n", FormatNumber(rec.TotalTokens))
	p.printf("\nInput cost:    %s\n", FormatCost(rec.InputCost))
	p.printf("Output cost:   %s\n", FormatCost(rec.OutputCost))
	p.printf("Total cost:    %s\n", FormatCost(rec.TotalCost))
	p.rule()
}

// Session prints the live session's statistics
func (p *Printer) Session(info ledger.SessionInfo) {
	s := info.Stats
	duration := info.Now.Sub(info.Start).Minutes()

	p.section("SESSION")
	p.printf("Session ID:    %s\n", info.ID)
	p.printf("Started:       %s\n", info.Start.Local().Format(time.DateTime))
	p.printf("Duration:      %.2f min\n", duration)
	p.printf("\nRequests:      %d\n", s.RequestCount)
	p.printf("Input tokens:  %s\n", FormatNumber(s.TotalInputTokens))
	p.printf("Output tokens: %s\n", FormatNumber(s.TotalOutputTokens))
	p.printf("Total tokens:  %s\n", FormatNumber(s.TotalTokens()))
	p.printf("\nSession cost:  %s\n", FormatCost(s.TotalCost))

	if s.RequestCount > 0 {
		avgCost := s.TotalCost / float64(s.RequestCount)
		avgTokens := float64(s.TotalTokens()) / float64(s.RequestCount)
		p.printf("Avg cost:      %s\n", FormatCost(avgCost))
		p.printf("Avg tokens:    %.0f\n", avgTokens)
	}
	p.rule()
}

// Totals prints statistics across all saved sessions
func (p *Printer) Totals(total *model.TotalStats) {
	if total == nil {
		p.printf("%s\n", p.muted.Render("No data from previous sessions"))
		return
	}

	p.section("ALL TIME")
	p.printf("Sessions:      %d\n", total.SessionCount)
	p.printf("Requests:      %d\n", total.RequestCount)
	p.printf("Input tokens:  %s\n", FormatNumber(total.TotalInputTokens))
	p.printf("Output tokens: %s\n", FormatNumber(total.TotalOutputTokens))
	p.printf("Total tokens:  %s\n", FormatNumber(total.TotalTokens))
	p.printf("Total cost:    %s\n", FormatCost(total.TotalCost))

	if total.RequestCount > 0 {
		p.printf("Avg cost:      %s\n", FormatCost(total.TotalCost/float64(total.RequestCount)))
	}
	p.rule()
}

// TopRequests prints a ranked list of requests
func (p *Printer) TopRequests(recs []model.RequestRecord) {
	if len(recs) == 0 {
		return
	}

	p.printf("\n%s\n\n", p.heading.Render(fmt.Sprintf("TOP %d MOST EXPENSIVE REQUESTS", len(recs))))
	for i, r := range recs {
		desc := r.Description
		if desc == "" {
			desc = p.muted.Render("(no description)")
		}
		p.printf("%d. %s\n", i+1, desc)
		p.printf("   Cost:   %s\n", FormatCost(r.TotalCost))
		p.printf("   Tokens: %s\n", FormatNumber(r.TotalTokens))
		p.printf("   Model:  %s\n\n", r.Model)
	}
}

// Pricing prints a pricing table sorted by model name
func (p *Printer) Pricing(table pricing.Table) {
	keyWidth := len("Model")
	for name := range table {
		keyWidth = max(keyWidth, len(name))
	}

	p.printf("\n%-*s  %12s  %12s\n", keyWidth, "Model", "Input/1K", "Output/1K")
	p.printf("%s\n", strings.Repeat("─", keyWidth+2+12+2+12))
	for _, name := range table.Models() {
		r := table[name]
		p.printf("%-*s  %12s  %12s\n", keyWidth, name, FormatCost(r.Input), FormatCost(r.Output))
	}
	p.printf("\n")
}

// Table prints aggregated usage as a formatted table
func (p *Printer) Table(results []model.AggregatedUsage, title string, showTotal bool) {
	if len(results) == 0 {
		p.printf("No usage data found.\n")
		return
	}

	compact := shouldUseCompact(p.opts)

	// Session IDs are long UUIDs
	isSessionView := title == "Session"

	// Calculate key column width
	keyWidth := len(title)
	for _, r := range results {
		key := r.Key
		if isSessionView && compact {
			key = shortenSessionID(key)
		}
		keyWidth = max(keyWidth, len(key))
	}
	keyWidth = max(keyWidth, 10)
	// Cap key width in compact mode
	if compact && keyWidth > 12 {
		keyWidth = 12
	}

	row := func(key, in, out, reqs, cost string) {
		if compact {
			p.printf("%-*s  %12s  %12s  %12s\n", keyWidth, key, in, out, cost)
			return
		}
		p.printf("%-*s  %12s  %12s  %8s  %12s\n", keyWidth, key, in, out, reqs, cost)
	}
	width := keyWidth + 2 + 12 + 2 + 12 + 2 + 12
	if !compact {
		width += 2 + 8
	}

	p.printf("\n")
	row(title, "Input", "Output", "Requests", "Cost")
	p.printf("%s\n", strings.Repeat("─", width))

	for _, r := range results {
		key := r.Key
		if isSessionView && compact {
			key = shortenSessionID(key)
		}
		if len(key) > keyWidth {
			key = key[:keyWidth]
		}
		row(key, FormatNumber(r.InputTokens), FormatNumber(r.OutputTokens), fmt.Sprint(r.RecordCount), FormatCost(r.Cost))
	}

	if showTotal && len(results) > 1 {
		p.printf("%s\n", strings.Repeat("─", width))

		var in, out int64
		var reqs int
		var cost float64
		for _, r := range results {
			in += r.InputTokens
			out += r.OutputTokens
			reqs += r.RecordCount
			cost += r.Cost
		}
		row("Total", FormatNumber(in), FormatNumber(out), fmt.Sprint(reqs), FormatCost(cost))
	}

	p.printf("\n")
	if compact {
		p.printf("%s\n", p.muted.Render("(Compact mode - expand terminal for full view)"))
	}
}

// TableWithBreakdown prints the table followed by the models used
func (p *Printer) TableWithBreakdown(results []model.AggregatedUsage, title string) {
	p.Table(results, title, true)

	modelsMap := make(map[string]bool)
	for _, r := range results {
		for _, m := range r.Models {
			modelsMap[m] = true
		}
	}
	if len(modelsMap) == 0 {
		return
	}

	models := make([]string, 0, len(modelsMap))
	for m := range modelsMap {
		models = append(models, m)
	}
	sort.Strings(models)

	p.printf("Models used:\n")
	for _, m := range models {
		p.printf("  - %s\n", m)
	}
	p.printf("\n")
}

// JSONOutput represents the JSON output structure
type JSONOutput struct {
	Results []JSONResult `json:"results"`
	Total   JSONResult   `json:"total"`
}

// JSONResult represents a single result in JSON format
type JSONResult struct {
	Key          string   `json:"key"`
	InputTokens  int64    `json:"inputTokens"`
	OutputTokens int64    `json:"outputTokens"`
	Requests     int      `json:"requests"`
	Cost         float64  `json:"cost"`
	Models       []string `json:"models,omitempty"`
}

func toJSONResult(r model.AggregatedUsage) JSONResult {
	return JSONResult{
		Key:          r.Key,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		Requests:     r.RecordCount,
		Cost:         pricing.Round(r.Cost),
		Models:       r.Models,
	}
}

// PrintJSON writes aggregated results and their total as indented JSON
func PrintJSON(w io.Writer, results []model.AggregatedUsage, total model.AggregatedUsage) error {
	out := JSONOutput{
		Results: make([]JSONResult, len(results)),
		Total:   toJSONResult(total),
	}
	out.Total.Key = "total"
	for i, r := range results {
		out.Results[i] = toJSONResult(r)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
