package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhaobenny/tokenledger/internal/model"
)

// ReadHistory reads a history file. A missing or blank file is an empty history.
func ReadHistory(path string) ([]model.SessionSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history file %q: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var history []model.SessionSummary
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history file %q: %w", path, err)
	}
	return history, nil
}

// WriteHistory replaces the history file with the given sessions
func WriteHistory(path string, history []model.SessionSummary) error {
	if history == nil {
		history = []model.SessionSummary{}
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file %q: %w", path, err)
	}
	return nil
}

// SumHistory totals every session in history. It returns nil for an empty history.
func SumHistory(history []model.SessionSummary) *model.TotalStats {
	if len(history) == 0 {
		return nil
	}

	total := &model.TotalStats{SessionCount: len(history)}
	for _, s := range history {
		total.TotalInputTokens += s.Stats.TotalInputTokens
		total.TotalOutputTokens += s.Stats.TotalOutputTokens
		total.TotalTokens += s.Stats.TotalTokens
		total.TotalCost += s.Stats.TotalCost
		total.RequestCount += s.Stats.RequestCount
	}
	return total
}
