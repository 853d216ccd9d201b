// Package ledger records token usage and cost for LLM API calls, keeps running
// totals for the current session and persists finished sessions to a JSON
// history file.
//
// A Ledger is one session. Construct it with New, feed it with TrackRequest and
// finish it with EndSession or Close. Close is the shutdown hook: wire it to
// whatever signal or lifecycle mechanism the host process uses.
//
// The history file is rewritten in full on every save. Two ledgers saving to
// the same path race: the last save wins and the other session is lost.
package ledger

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhaobenny/tokenledger/internal/model"
	"github.com/zhaobenny/tokenledger/internal/pricing"
)

// DefaultHistoryFile is used when Options.HistoryFile is empty
const DefaultHistoryFile = "token-usage-history.json"

// DefaultTopLimit is the number of records TopExpensiveRequests returns for a
// non-positive limit
const DefaultTopLimit = 5

// Reporter receives human-readable events from a Ledger
type Reporter interface {
	Request(rec model.RequestRecord)
	Session(info SessionInfo)
	Totals(total *model.TotalStats)
}

// SessionInfo describes the live session for reporting
type SessionInfo struct {
	ID    string
	Start time.Time
	Now   time.Time
	Stats model.SessionStats
}

// Options configure a Ledger
type Options struct {
	// HistoryFile is where sessions are persisted
	HistoryFile string

	// Pricing overrides are merged over pricing.Defaults()
	Pricing pricing.Table

	Logger   *slog.Logger
	Reporter Reporter

	// Now is the clock, defaults to time.Now
	Now func() time.Time
}

// Ledger tracks a single session
type Ledger struct {
	historyFile string
	pricing     pricing.Table
	logger      *slog.Logger
	reporter    Reporter
	now         func() time.Time

	mu        sync.Mutex
	sessionID string
	start     time.Time
	stats     model.SessionStats
	history   []model.SessionSummary

	saved      bool
	savedCount int
	closed     bool
}

// New starts a session and loads the existing history. A history file that
// cannot be read leaves the ledger with an empty history.
func New(opts Options) *Ledger {
	l := &Ledger{
		historyFile: opts.HistoryFile,
		pricing:     pricing.Merge(pricing.Defaults(), opts.Pricing),
		logger:      opts.Logger,
		reporter:    opts.Reporter,
		now:         opts.Now,
	}
	if l.historyFile == "" {
		l.historyFile = DefaultHistoryFile
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.reporter == nil {
		l.reporter = nopReporter{}
	}
	if l.now == nil {
		l.now = time.Now
	}

	l.start = l.timestamp()
	l.sessionID = newSessionID(l.start)
	l.stats.Requests = []model.RequestRecord{}

	history, err := ReadHistory(l.historyFile)
	if err != nil {
		l.logger.Warn("Could not load usage history", "path", l.historyFile, "error", err)
	} else {
		l.history = history
		l.logger.Debug("Loaded usage history", "path", l.historyFile, "sessions", len(history))
	}

	return l
}

// newSessionID returns a time-ordered UUID, falling back to the start time in
// milliseconds if the random source fails
func newSessionID(start time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		return time.UnixMilli(start.UnixMilli()).UTC().Format("20060102150405.000")
	}
	return id.String()
}

func (l *Ledger) timestamp() time.Time {
	return l.now().UTC().Truncate(time.Millisecond)
}

// SessionID returns the id of the live session
func (l *Ledger) SessionID() string {
	return l.sessionID
}

// HistoryFile returns the path sessions are saved to
func (l *Ledger) HistoryFile() string {
	return l.historyFile
}

// Pricing returns the merged pricing table in use
func (l *Ledger) Pricing() pricing.Table {
	return pricing.Merge(l.pricing, nil)
}

// TrackRequest records one API call. Unknown models are priced with the
// default rate. Negative token counts are treated as zero.
func (l *Ledger) TrackRequest(inputTokens, outputTokens int64, modelName, description string) model.RequestRecord {
	if modelName == "" {
		modelName = model.DefaultModel
	}
	if inputTokens < 0 || outputTokens < 0 {
		l.logger.Warn("Negative token count clamped to zero",
			"model", modelName, "input_tokens", inputTokens, "output_tokens", outputTokens)
		inputTokens = max(inputTokens, 0)
		outputTokens = max(outputTokens, 0)
	}

	rate, ok := l.pricing.Lookup(modelName)
	if !ok {
		l.logger.Debug("Unknown model, using default pricing", "model", modelName)
	}

	inputCost := pricing.Cost(inputTokens, rate.Input)
	outputCost := pricing.Cost(outputTokens, rate.Output)
	totalCost := inputCost + outputCost

	rec := model.RequestRecord{
		Timestamp:    l.timestamp(),
		Model:        modelName,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		InputCost:    pricing.Round(inputCost),
		OutputCost:   pricing.Round(outputCost),
		TotalCost:    pricing.Round(totalCost),
		Description:  description,
	}

	l.mu.Lock()
	l.stats.TotalInputTokens += inputTokens
	l.stats.TotalOutputTokens += outputTokens
	l.stats.TotalCost += totalCost
	l.stats.RequestCount++
	l.stats.Requests = append(l.stats.Requests, rec)
	l.mu.Unlock()

	l.reporter.Request(rec)
	return rec
}

// TopExpensiveRequests returns up to limit records of the current session,
// most expensive first. Records with equal cost keep their tracking order.
func (l *Ledger) TopExpensiveRequests(limit int) []model.RequestRecord {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	l.mu.Lock()
	sorted := make([]model.RequestRecord, len(l.stats.Requests))
	copy(sorted, l.stats.Requests)
	l.mu.Unlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalCost > sorted[j].TotalCost
	})

	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

// SessionStats returns a snapshot of the live session
func (l *Ledger) SessionStats() model.SessionStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() model.SessionStats {
	s := l.stats
	s.Requests = make([]model.RequestRecord, len(l.stats.Requests))
	copy(s.Requests, l.stats.Requests)
	return s
}

// TotalStats sums the history loaded when the ledger was created. It does not
// include the live session or sessions saved later by other processes, and it
// is nil when that history is empty.
func (l *Ledger) TotalStats() *model.TotalStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return SumHistory(l.history)
}

// Summary builds the persisted form of the live session, ending now
func (l *Ledger) Summary() model.SessionSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summaryLocked(l.timestamp())
}

func (l *Ledger) summaryLocked(end time.Time) model.SessionSummary {
	s := l.snapshotLocked()
	return model.SessionSummary{
		SessionID:    l.sessionID,
		SessionStart: l.start,
		SessionEnd:   end,
		Stats: model.SummaryStats{
			TotalInputTokens:  s.TotalInputTokens,
			TotalOutputTokens: s.TotalOutputTokens,
			TotalTokens:       s.TotalTokens(),
			TotalCost:         pricing.Round(s.TotalCost),
			RequestCount:      s.RequestCount,
		},
		Requests: s.Requests,
	}
}

// SaveHistory re-reads the history file, appends the live session and writes
// the file back. History is append-only across sessions, but not within one:
// saving the same session again replaces its earlier entry, matched by
// sessionId, so totals never count a session twice. On failure nothing in
// memory changes and the error is returned.
func (l *Ledger) SaveHistory() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

func (l *Ledger) saveLocked() error {
	history, err := ReadHistory(l.historyFile)
	if err != nil {
		l.logger.Warn("Could not save usage history", "path", l.historyFile, "error", err)
		return err
	}

	summary := l.summaryLocked(l.timestamp())
	replaced := false
	for i := range history {
		if history[i].SessionID == summary.SessionID {
			history[i] = summary
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, summary)
	}

	if err := WriteHistory(l.historyFile, history); err != nil {
		l.logger.Warn("Could not save usage history", "path", l.historyFile, "error", err)
		return err
	}

	l.saved = true
	l.savedCount = l.stats.RequestCount
	l.logger.Info("Saved usage history",
		"path", l.historyFile, "session_id", l.sessionID, "requests", summary.Stats.RequestCount)
	return nil
}

// EndSession reports the session, saves it and reports the historical totals
func (l *Ledger) EndSession() error {
	l.mu.Lock()
	info := SessionInfo{ID: l.sessionID, Start: l.start, Now: l.timestamp(), Stats: l.snapshotLocked()}
	l.mu.Unlock()
	l.reporter.Session(info)

	err := l.SaveHistory()

	l.reporter.Totals(l.TotalStats())
	return err
}

// Close saves the session if it has never been saved or has unsaved requests.
// Calling Close more than once is a no-op.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.saved && l.savedCount == l.stats.RequestCount {
		return nil
	}
	return l.saveLocked()
}

type nopReporter struct{}

func (nopReporter) Request(model.RequestRecord) {}
func (nopReporter) Session(SessionInfo)         {}
func (nopReporter) Totals(*model.TotalStats)    {}
