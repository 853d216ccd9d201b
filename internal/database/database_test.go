package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/tokenledger/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func session(id string, day int, reqs ...model.RequestRecord) model.SessionSummary {
	s := model.SessionSummary{
		SessionID:    id,
		SessionStart: time.Date(2025, 1, day, 9, 0, 0, 0, time.UTC),
		SessionEnd:   time.Date(2025, 1, day, 10, 0, 0, 0, time.UTC),
		Requests:     reqs,
	}
	for _, r := range reqs {
		s.Stats.TotalInputTokens += r.InputTokens
		s.Stats.TotalOutputTokens += r.OutputTokens
		s.Stats.TotalTokens += r.TotalTokens
		s.Stats.TotalCost += r.TotalCost
		s.Stats.RequestCount++
	}
	return s
}

func request(day int, modelName string, in, out int64, cost float64) model.RequestRecord {
	return model.RequestRecord{
		Timestamp:    time.Date(2025, 1, day, 9, 30, 0, 0, time.UTC),
		Model:        modelName,
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		TotalCost:    cost,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())
}

func TestGetOrCreateClient(t *testing.T) {
	db := openTestDB(t)

	c, err := db.GetOrCreateClient("abc", "laptop")
	require.NoError(t, err)
	require.Equal(t, "laptop", c.Name)
	require.Nil(t, c.LastImportAt)

	again, err := db.GetOrCreateClient("abc", "renamed")
	require.NoError(t, err)
	require.Equal(t, "laptop", again.Name)
}

func TestImportHistory(t *testing.T) {
	db := openTestDB(t)

	history := []model.SessionSummary{
		session("s1", 1,
			request(1, "gpt-4", 150, 300, 0.0225),
			request(1, "claude-3-haiku", 1000, 1000, 0.0015),
		),
		session("s2", 2, request(2, "gpt-4", 1000, 0, 0.03)),
	}

	n, err := db.ImportHistory("abc", "laptop", history)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	count, err := db.SessionCount()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// re-importing unchanged history is a no-op
	n, err = db.ImportHistory("abc", "laptop", history)
	require.NoError(t, err)
	require.Zero(t, n)

	c, err := db.GetOrCreateClient("abc", "laptop")
	require.NoError(t, err)
	require.NotNil(t, c.LastImportAt)

	// a session saved again with more requests replaces its rows
	history[1] = session("s2", 2,
		request(2, "gpt-4", 1000, 0, 0.03),
		request(2, "gpt-4", 0, 1000, 0.06),
	)
	n, err = db.ImportHistory("abc", "laptop", history)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	var requests int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM requests`).Scan(&requests))
	require.Equal(t, 4, requests)
}

func TestModelBreakdown(t *testing.T) {
	db := openTestDB(t)

	_, err := db.ImportHistory("abc", "laptop", []model.SessionSummary{
		session("s1", 1,
			request(1, "gpt-4", 150, 300, 0.0225),
			request(1, "claude-3-haiku", 1000, 1000, 0.0015),
		),
		session("s2", 2, request(2, "gpt-4", 1000, 0, 0.03)),
	})
	require.NoError(t, err)

	results, err := db.ModelBreakdown()
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, "gpt-4", results[0].Key)
	require.Equal(t, int64(1150), results[0].InputTokens)
	require.Equal(t, int64(300), results[0].OutputTokens)
	require.Equal(t, 2, results[0].RecordCount)
	require.InDelta(t, 0.0525, results[0].Cost, 1e-9)

	require.Equal(t, "claude-3-haiku", results[1].Key)
}

func TestGetUsageByDay(t *testing.T) {
	db := openTestDB(t)

	_, err := db.ImportHistory("abc", "laptop", []model.SessionSummary{
		session("s1", 1, request(1, "gpt-4", 150, 300, 0.0225)),
		session("s2", 2, request(2, "gpt-4", 1000, 0, 0.03), request(2, "default", 1, 1, 0.000003)),
	})
	require.NoError(t, err)

	days, err := db.GetUsageByDay(0)
	require.NoError(t, err)
	require.Len(t, days, 2)
	require.Equal(t, "2025-01-02", days[0].Key)
	require.Equal(t, 2, days[0].RecordCount)
	require.Equal(t, "2025-01-01", days[1].Key)

	days, err = db.GetUsageByDay(1)
	require.NoError(t, err)
	require.Len(t, days, 1)
}
