package model

import "time"

// DefaultModel is the pricing key used when a model has no entry of its own
const DefaultModel = "default"

// Rate is the USD price per 1000 tokens for one model
type Rate struct {
	Input  float64 `json:"input" yaml:"input"`
	Output float64 `json:"output" yaml:"output"`
}

// RequestRecord is a single tracked API call. Costs are computed once, when the
// record is created, and are rounded to 6 decimal places.
type RequestRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
	TotalTokens  int64     `json:"totalTokens"`
	InputCost    float64   `json:"inputCost"`
	OutputCost   float64   `json:"outputCost"`
	TotalCost    float64   `json:"totalCost"`
	Description  string    `json:"description"`
}

// SessionStats is the running aggregate for the current session
type SessionStats struct {
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalCost         float64 // full precision, rounded only when summarized
	RequestCount      int
	Requests          []RequestRecord
}

// TotalTokens returns input plus output tokens
func (s SessionStats) TotalTokens() int64 {
	return s.TotalInputTokens + s.TotalOutputTokens
}

// SummaryStats is the aggregate block stored with each persisted session
type SummaryStats struct {
	TotalInputTokens  int64   `json:"totalInputTokens"`
	TotalOutputTokens int64   `json:"totalOutputTokens"`
	TotalTokens       int64   `json:"totalTokens"`
	TotalCost         float64 `json:"totalCost"`
	RequestCount      int     `json:"requestCount"`
}

// SessionSummary is one element of the persisted history file
type SessionSummary struct {
	SessionID    string          `json:"sessionId"`
	SessionStart time.Time       `json:"sessionStart"`
	SessionEnd   time.Time       `json:"sessionEnd"`
	Stats        SummaryStats    `json:"stats"`
	Requests     []RequestRecord `json:"requests"`
}

// TotalStats represents usage aggregated across every persisted session
type TotalStats struct {
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalTokens       int64
	TotalCost         float64
	RequestCount      int
	SessionCount      int
}

// AggregatedUsage represents usage aggregated by some key (day, month, model, session)
type AggregatedUsage struct {
	Key          string   // The grouping key (date, session ID, etc.)
	InputTokens  int64    // Aggregated input tokens
	OutputTokens int64    // Aggregated output tokens
	Cost         float64  // Total cost in USD
	Models       []string // Models used in this period
	RecordCount  int      // Number of records aggregated
}
