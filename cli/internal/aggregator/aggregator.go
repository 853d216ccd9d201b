package aggregator

import (
	"sort"
	"time"

	"github.com/zhaobenny/tokenledger/internal/model"
)

// Options for aggregation
type Options struct {
	Since    time.Time
	Until    time.Time
	Timezone *time.Location
}

func (opts Options) localize(ts time.Time) time.Time {
	if opts.Timezone != nil {
		return ts.In(opts.Timezone)
	}
	return ts
}

// FilterRequests flattens history into requests within the date range
func FilterRequests(history []model.SessionSummary, opts Options) []Request {
	var filtered []Request
	for _, s := range history {
		for _, r := range s.Requests {
			ts := opts.localize(r.Timestamp)
			if !opts.Since.IsZero() && ts.Before(opts.Since) {
				continue
			}
			if !opts.Until.IsZero() && ts.After(opts.Until) {
				continue
			}
			filtered = append(filtered, Request{SessionID: s.SessionID, RequestRecord: r})
		}
	}
	return filtered
}

// Request is a history record tagged with the session it belongs to
type Request struct {
	SessionID string
	model.RequestRecord
}

// group aggregates requests under keyFn. Results are ordered by less, which
// receives the keys and the latest timestamp seen for each.
func group(requests []Request, keyFn func(Request) string, less func(a, b string, latest map[string]time.Time) bool) []model.AggregatedUsage {
	grouped := make(map[string]*model.AggregatedUsage)
	modelsMap := make(map[string]map[string]bool)
	latest := make(map[string]time.Time)

	for _, r := range requests {
		key := keyFn(r)

		if _, ok := grouped[key]; !ok {
			grouped[key] = &model.AggregatedUsage{Key: key}
			modelsMap[key] = make(map[string]bool)
		}
		if r.Timestamp.After(latest[key]) {
			latest[key] = r.Timestamp
		}

		agg := grouped[key]
		agg.InputTokens += r.InputTokens
		agg.OutputTokens += r.OutputTokens
		agg.Cost += r.TotalCost
		agg.RecordCount++

		modelsMap[key][r.Model] = true
	}

	// Convert models map to slice and sort results
	results := make([]model.AggregatedUsage, 0, len(grouped))
	for key, agg := range grouped {
		for m := range modelsMap[key] {
			agg.Models = append(agg.Models, m)
		}
		sort.Strings(agg.Models)
		results = append(results, *agg)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return less(results[i].Key, results[j].Key, latest)
	})
	return results
}

func newestKeyFirst(a, b string, _ map[string]time.Time) bool {
	return a > b
}

// ByDay aggregates usage by day, newest first
func ByDay(requests []Request, opts Options) []model.AggregatedUsage {
	return group(requests, func(r Request) string {
		return opts.localize(r.Timestamp).Format("2006-01-02")
	}, newestKeyFirst)
}

// ByMonth aggregates usage by month, newest first
func ByMonth(requests []Request, opts Options) []model.AggregatedUsage {
	return group(requests, func(r Request) string {
		return opts.localize(r.Timestamp).Format("2006-01")
	}, newestKeyFirst)
}

// BySession aggregates usage by session ID, most recent activity first
func BySession(requests []Request) []model.AggregatedUsage {
	return group(requests, func(r Request) string {
		if r.SessionID == "" {
			return "unknown"
		}
		return r.SessionID
	}, func(a, b string, latest map[string]time.Time) bool {
		if latest[a].Equal(latest[b]) {
			return a < b
		}
		return latest[a].After(latest[b])
	})
}

// ByModel aggregates usage by model name, alphabetically
func ByModel(requests []Request) []model.AggregatedUsage {
	return group(requests, func(r Request) string {
		return r.Model
	}, func(a, b string, _ map[string]time.Time) bool {
		return a < b
	})
}

// CalculateTotal returns the total aggregated usage
func CalculateTotal(results []model.AggregatedUsage) model.AggregatedUsage {
	total := model.AggregatedUsage{Key: "Total"}
	modelsMap := make(map[string]bool)

	for _, r := range results {
		total.InputTokens += r.InputTokens
		total.OutputTokens += r.OutputTokens
		total.Cost += r.Cost
		total.RecordCount += r.RecordCount

		for _, m := range r.Models {
			modelsMap[m] = true
		}
	}

	for m := range modelsMap {
		total.Models = append(total.Models, m)
	}
	sort.Strings(total.Models)

	return total
}
