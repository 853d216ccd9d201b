// Package database mirrors ledger history files into SQLite so sessions from
// several machines and history files can be queried together.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zhaobenny/tokenledger/internal/model"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// Client is a machine whose history has been imported
type Client struct {
	ID           string
	Name         string
	LastImportAt *time.Time
	CreatedAt    time.Time
}

// Open opens a SQLite database connection
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors when two imports overlap
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// Migrate creates the database schema
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		last_import_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		session_start TIMESTAMP NOT NULL,
		session_end TIMESTAMP NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		total_cost REAL NOT NULL,
		request_count INTEGER NOT NULL,
		FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		input_cost REAL NOT NULL,
		output_cost REAL NOT NULL,
		total_cost REAL NOT NULL,
		description TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
		UNIQUE(session_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp);
	CREATE INDEX IF NOT EXISTS idx_requests_model ON requests(model);
	CREATE INDEX IF NOT EXISTS idx_sessions_client ON sessions(client_id);
	`

	_, err := db.Exec(schema)
	return err
}

// GetOrCreateClient gets an existing client or creates a new one
func (db *DB) GetOrCreateClient(clientID, clientName string) (*Client, error) {
	client := &Client{}
	var lastImportAt sql.NullTime
	err := db.QueryRow(
		`SELECT id, name, last_import_at, created_at FROM clients WHERE id = ?`,
		clientID,
	).Scan(&client.ID, &client.Name, &lastImportAt, &client.CreatedAt)

	if err == nil {
		if lastImportAt.Valid {
			client.LastImportAt = &lastImportAt.Time
		}
		return client, nil
	}

	if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = db.Exec(
		`INSERT INTO clients (id, name, created_at) VALUES (?, ?, ?)`,
		clientID, clientName, now,
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		ID:        clientID,
		Name:      clientName,
		CreatedAt: now,
	}, nil
}

// ImportHistory upserts sessions for a client. Sessions already present with
// the same end time and request count are left alone. It returns the number
// of sessions inserted or updated.
func (db *DB) ImportHistory(clientID, clientName string, history []model.SessionSummary) (int64, error) {
	if _, err := db.GetOrCreateClient(clientID, clientName); err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	sessionStmt, err := tx.Prepare(`
		INSERT INTO sessions
		(id, client_id, session_start, session_end, input_tokens, output_tokens, total_cost, request_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_end = excluded.session_end,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			total_cost = excluded.total_cost,
			request_count = excluded.request_count
		WHERE excluded.request_count != sessions.request_count
		   OR excluded.session_end != sessions.session_end
	`)
	if err != nil {
		return 0, err
	}
	defer sessionStmt.Close()

	requestStmt, err := tx.Prepare(`
		INSERT INTO requests
		(session_id, seq, timestamp, model, input_tokens, output_tokens,
		 input_cost, output_cost, total_cost, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer requestStmt.Close()

	var imported int64
	for _, s := range history {
		result, err := sessionStmt.Exec(
			s.SessionID, clientID, s.SessionStart.UTC(), s.SessionEnd.UTC(),
			s.Stats.TotalInputTokens, s.Stats.TotalOutputTokens, s.Stats.TotalCost, s.Stats.RequestCount,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to import session %s: %w", s.SessionID, err)
		}
		n, _ := result.RowsAffected()
		if n == 0 {
			continue
		}
		imported++

		if _, err := tx.Exec(`DELETE FROM requests WHERE session_id = ?`, s.SessionID); err != nil {
			return 0, err
		}
		for i, r := range s.Requests {
			_, err := requestStmt.Exec(
				s.SessionID, i, r.Timestamp.UTC(), r.Model, r.InputTokens, r.OutputTokens,
				r.InputCost, r.OutputCost, r.TotalCost, r.Description,
			)
			if err != nil {
				return 0, fmt.Errorf("failed to import request %d of session %s: %w", i, s.SessionID, err)
			}
		}
	}

	if _, err := tx.Exec(`UPDATE clients SET last_import_at = ? WHERE id = ?`, time.Now().UTC(), clientID); err != nil {
		return 0, err
	}

	return imported, tx.Commit()
}

// SessionCount returns the number of archived sessions
func (db *DB) SessionCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

// ModelBreakdown returns per-model usage across every archived request,
// most expensive first
func (db *DB) ModelBreakdown() ([]model.AggregatedUsage, error) {
	rows, err := db.Query(`
		SELECT model, SUM(input_tokens), SUM(output_tokens), SUM(total_cost), COUNT(*)
		FROM requests
		GROUP BY model
		ORDER BY SUM(total_cost) DESC, model ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.AggregatedUsage
	for rows.Next() {
		var u model.AggregatedUsage
		if err := rows.Scan(&u.Key, &u.InputTokens, &u.OutputTokens, &u.Cost, &u.RecordCount); err != nil {
			return nil, err
		}
		u.Models = []string{u.Key}
		results = append(results, u)
	}
	return results, rows.Err()
}

// GetUsageByDay returns daily usage for the most recent days, newest first
func (db *DB) GetUsageByDay(days int) ([]model.AggregatedUsage, error) {
	if days <= 0 {
		days = 30
	}

	rows, err := db.Query(`
		SELECT DATE(timestamp) AS day, SUM(input_tokens), SUM(output_tokens), SUM(total_cost), COUNT(*)
		FROM requests
		GROUP BY day
		ORDER BY day DESC
		LIMIT ?
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.AggregatedUsage
	for rows.Next() {
		var u model.AggregatedUsage
		if err := rows.Scan(&u.Key, &u.InputTokens, &u.OutputTokens, &u.Cost, &u.RecordCount); err != nil {
			return nil, err
		}
		results = append(results, u)
	}
	return results, rows.Err()
}
