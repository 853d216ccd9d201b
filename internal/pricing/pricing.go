package pricing

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/tokenledger/internal/model"
)

// Table maps a model name to its per-1000-token rates. A usable table always
// carries a model.DefaultModel entry.
type Table map[string]model.Rate

// Defaults returns the built-in pricing table
func Defaults() Table {
	return Table{
		// OpenAI
		"gpt-4":         {Input: 0.03, Output: 0.06},
		"gpt-4-turbo":   {Input: 0.01, Output: 0.03},
		"gpt-3.5-turbo": {Input: 0.0005, Output: 0.0015},
		// Anthropic
		"claude-3-opus":     {Input: 0.015, Output: 0.075},
		"claude-3-sonnet":   {Input: 0.003, Output: 0.015},
		"claude-3-haiku":    {Input: 0.00025, Output: 0.00125},
		"claude-sonnet-4-5": {Input: 0.003, Output: 0.015},

		model.DefaultModel: {Input: 0.001, Output: 0.002},
	}
}

// Merge returns a new table with overrides layered over base. The default entry
// from base survives unless overrides replace it.
func Merge(base, overrides Table) Table {
	merged := make(Table, len(base)+len(overrides))
	for name, r := range base {
		merged[name] = r
	}
	for name, r := range overrides {
		merged[name] = r
	}
	if _, ok := merged[model.DefaultModel]; !ok {
		merged[model.DefaultModel] = Defaults()[model.DefaultModel]
	}
	return merged
}

// Validate reports the first entry with a negative rate
func (t Table) Validate() error {
	for _, name := range t.Models() {
		r := t[name]
		if r.Input < 0 || r.Output < 0 {
			return fmt.Errorf("negative rate for model %q", name)
		}
	}
	if _, ok := t[model.DefaultModel]; !ok {
		return fmt.Errorf("pricing table has no %q entry", model.DefaultModel)
	}
	return nil
}

// Lookup returns the rate for a model. It tries an exact match, then a
// normalized name match, then falls back to the default entry. ok is false
// when the fallback was used.
func (t Table) Lookup(modelName string) (rate model.Rate, ok bool) {
	if r, found := t[modelName]; found {
		return r, true
	}

	normalized := normalizeModelName(modelName)
	for _, name := range t.Models() {
		if name != model.DefaultModel && normalizeModelName(name) == normalized {
			return t[name], true
		}
	}

	if r, found := t[model.DefaultModel]; found {
		return r, false
	}
	return Defaults()[model.DefaultModel], false
}

// Models returns the table's model names in sorted order
func (t Table) Models() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeModelName normalizes model names for matching
func normalizeModelName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, ".", "")
	return name
}

// Cost calculates the cost of tokens at a per-1000-token rate
func Cost(tokens int64, perThousand float64) float64 {
	if tokens <= 0 {
		return 0
	}
	return float64(tokens) / 1000 * perThousand
}

// Round rounds a dollar amount to 6 decimal places
func Round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// LoadFile reads a YAML pricing file of the form
//
//	gpt-4o:
//	  input: 0.0025
//	  output: 0.01
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file %q: %w", path, err)
	}
	return t, nil
}
