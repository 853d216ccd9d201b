package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/tokenledger/internal/ledger"
	"github.com/zhaobenny/tokenledger/internal/model"
	"github.com/zhaobenny/tokenledger/internal/pricing"
)

func TestFormatNumber(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for in, want := range tests {
		require.Equal(t, want, FormatNumber(in))
	}
}

func TestFormatCost(t *testing.T) {
	require.Equal(t, "$0.022500", FormatCost(0.0225))
	require.Equal(t, "$0.000000", FormatCost(0))
}

func TestShortenSessionID(t *testing.T) {
	require.Equal(t, "0195f3a2", shortenSessionID("0195f3a2-7c1e-7b54-9d6f-1a2b3c4d5e6f"))
	require.Equal(t, "short", shortenSessionID("short"))
}

func TestPrinter_Request(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, TableOptions{})

	p.Request(model.RequestRecord{
		Timestamp:    time.Now(),
		Model:        "gpt-4",
		InputTokens:  1500,
		OutputTokens: 300,
		TotalTokens:  1800,
		InputCost:    0.045,
		OutputCost:   0.018,
		TotalCost:    0.063,
		Description:  "summarize report",
	})

	out := buf.String()
	require.Contains(t, out, "REQUEST")
	require.Contains(t, out, "gpt-4")
	require.Contains(t, out, "summarize report")
	require.Contains(t, out, "1,500")
	require.Contains(t, out, "$0.063000")
}

func TestPrinter_Session(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, TableOptions{})

	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	p.Session(ledger.SessionInfo{
		ID:    "session-1",
		Start: start,
		Now:   start.Add(90 * time.Second),
		Stats: model.SessionStats{TotalInputTokens: 100, TotalOutputTokens: 300, TotalCost: 0.02, RequestCount: 2},
	})

	out := buf.String()
	require.Contains(t, out, "session-1")
	require.Contains(t, out, "1.50 min")
	require.Contains(t, out, "$0.010000") // average
	require.Contains(t, out, "Avg tokens:    200")
}

func TestPrinter_Totals(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, TableOptions{})

	p.Totals(nil)
	require.Contains(t, buf.String(), "No data from previous sessions")

	buf.Reset()
	p.Totals(&model.TotalStats{SessionCount: 3, RequestCount: 4, TotalTokens: 12345, TotalCost: 0.04})
	require.Contains(t, buf.String(), "Sessions:      3")
	require.Contains(t, buf.String(), "12,345")
	require.Contains(t, buf.String(), "$0.010000")
}

func TestPrinter_TopRequests(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, TableOptions{})

	p.TopRequests(nil)
	require.Empty(t, buf.String())

	p.TopRequests([]model.RequestRecord{
		{Model: "gpt-4", TotalCost: 0.06, TotalTokens: 1000, Description: "big"},
		{Model: "default", TotalCost: 0.003, TotalTokens: 2000},
	})
	out := buf.String()
	require.Contains(t, out, "TOP 2")
	require.Contains(t, out, "1. big")
	require.Contains(t, out, "(no description)")
}

func TestPrinter_Pricing(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, TableOptions{}).Pricing(pricing.Defaults())

	out := buf.String()
	require.Contains(t, out, "claude-sonnet-4-5")
	require.Less(t, strings.Index(out, "claude-3-haiku"), strings.Index(out, "gpt-4"))
}

func TestPrinter_Table(t *testing.T) {
	results := []model.AggregatedUsage{
		{Key: "0195f3a2-7c1e-7b54-9d6f-1a2b3c4d5e6f", InputTokens: 1000, OutputTokens: 500, Cost: 0.06, RecordCount: 2, Models: []string{"gpt-4"}},
		{Key: "0195f3a1-0000-7000-8000-000000000000", InputTokens: 10, OutputTokens: 5, Cost: 0.001, RecordCount: 1, Models: []string{"claude-3-haiku"}},
	}

	t.Run("full", func(t *testing.T) {
		t.Setenv("COLUMNS", "200")
		var buf bytes.Buffer
		NewPrinter(&buf, TableOptions{}).TableWithBreakdown(results, "Session")

		out := buf.String()
		require.Contains(t, out, "0195f3a2-7c1e-7b54-9d6f-1a2b3c4d5e6f")
		require.Contains(t, out, "Requests")
		require.Contains(t, out, "Total")
		require.Contains(t, out, "1,010")
		require.Contains(t, out, "Models used:")
		require.Contains(t, out, "  - claude-3-haiku")
		require.NotContains(t, out, "Compact mode")
	})

	t.Run("compact", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf, TableOptions{ForceCompact: true}).Table(results, "Session", true)

		out := buf.String()
		require.Contains(t, out, "0195f3a2 ")
		require.NotContains(t, out, "7c1e")
		require.Contains(t, out, "Compact mode")
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf, TableOptions{}).Table(nil, "Date", true)
		require.Contains(t, buf.String(), "No usage data found.")
	})
}

func TestPrintJSON(t *testing.T) {
	results := []model.AggregatedUsage{
		{Key: "2025-01-02", InputTokens: 10, OutputTokens: 20, Cost: 0.1234567, RecordCount: 1},
	}
	total := model.AggregatedUsage{Key: "Total", InputTokens: 10, OutputTokens: 20, Cost: 0.1234567, RecordCount: 1}

	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, results, total))

	var decoded JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Results, 1)
	require.Equal(t, "total", decoded.Total.Key)
	require.Equal(t, 0.123457, decoded.Results[0].Cost)
	require.Contains(t, buf.String(), `"inputTokens": 10`)
}
