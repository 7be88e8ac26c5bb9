// Package ledger provides a rebuildable SQLite operational record of
// worker dispatches, investigation gaps, and timeouts. It is strictly
// observational: the phase state machine and investigation tree never
// read from it to decide what to do next, they only write to it. Losing
// the ledger file loses history, not correctness.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger wraps a SQLite database recording pipeline activity for
// observability and post-hoc cost/health analysis.
type Ledger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	worker_id TEXT NOT NULL,
	pathway TEXT NOT NULL DEFAULT '',
	depth TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	dispatched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	status TEXT NOT NULL DEFAULT 'running',
	exit_code INTEGER NOT NULL DEFAULT 0,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS gaps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	pathway TEXT NOT NULL,
	depth TEXT NOT NULL,
	reason TEXT NOT NULL,
	recorded_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS timeouts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	worker_id TEXT NOT NULL,
	timeout_s REAL NOT NULL,
	recorded_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dispatches_project ON dispatches(project_id);
CREATE INDEX IF NOT EXISTS idx_dispatches_status ON dispatches(status);
CREATE INDEX IF NOT EXISTS idx_gaps_project ON gaps(project_id);
CREATE INDEX IF NOT EXISTS idx_timeouts_project ON timeouts(project_id);
`

// Open creates or opens a SQLite database at path in WAL mode and
// ensures the schema exists.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error { return l.db.Close() }

// DB exposes the raw handle for callers that need ad-hoc queries
// (e.g. the health sweep's "dispatch row not closed" liveness check).
func (l *Ledger) DB() *sql.DB { return l.db }

// RecordDispatchStart inserts a running dispatch row and returns its id.
func (l *Ledger) RecordDispatchStart(projectID, workerID, pathway, depth, model string) (int64, error) {
	res, err := l.db.Exec(
		`INSERT INTO dispatches (project_id, worker_id, pathway, depth, model, status) VALUES (?, ?, ?, ?, ?, 'running')`,
		projectID, workerID, pathway, depth, model,
	)
	if err != nil {
		return 0, fmt.Errorf("ledger: record dispatch start: %w", err)
	}
	return res.LastInsertId()
}

// RecordDispatchEnd closes a dispatch row with its terminal status and
// observed token usage/cost. status is one of "completed", "failed",
// "timeout" or "read-error".
func (l *Ledger) RecordDispatchEnd(id int64, status string, exitCode, inputTokens, outputTokens int, costUSD float64) error {
	_, err := l.db.Exec(
		`UPDATE dispatches SET status = ?, exit_code = ?, input_tokens = ?, output_tokens = ?, cost_usd = ?, completed_at = datetime('now') WHERE id = ?`,
		status, exitCode, inputTokens, outputTokens, costUSD, id,
	)
	if err != nil {
		return fmt.Errorf("ledger: record dispatch end: %w", err)
	}
	return nil
}

// RecordGap logs a branch evaluation that fell through to a gap node
// after a retry (spec §4.4: "retry once, then gap").
func (l *Ledger) RecordGap(projectID, pathway, depth, reason string) error {
	_, err := l.db.Exec(
		`INSERT INTO gaps (project_id, pathway, depth, reason) VALUES (?, ?, ?, ?)`,
		projectID, pathway, depth, reason,
	)
	if err != nil {
		return fmt.Errorf("ledger: record gap: %w", err)
	}
	return nil
}

// RecordTimeout logs a worker that exceeded its per-dispatch timeout.
func (l *Ledger) RecordTimeout(projectID, workerID string, timeout time.Duration) error {
	_, err := l.db.Exec(
		`INSERT INTO timeouts (project_id, worker_id, timeout_s) VALUES (?, ?, ?)`,
		projectID, workerID, timeout.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("ledger: record timeout: %w", err)
	}
	return nil
}

// DispatchRow is a snapshot of one dispatch record.
type DispatchRow struct {
	ID            int64
	ProjectID     string
	WorkerID      string
	Pathway       string
	Depth         string
	DispatchedAt  time.Time
	Status        string
	InputTokens   int
	OutputTokens  int
	CostUSD       float64
}

// StuckDispatches returns running dispatch rows started before cutoff,
// the candidate set the health sweep treats as potentially stuck.
func (l *Ledger) StuckDispatches(cutoff time.Time) ([]DispatchRow, error) {
	rows, err := l.db.Query(
		`SELECT id, project_id, worker_id, pathway, depth, dispatched_at, status, input_tokens, output_tokens, cost_usd
		 FROM dispatches WHERE status = 'running' AND dispatched_at < ?`,
		cutoff.UTC().Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: stuck dispatches: %w", err)
	}
	defer rows.Close()

	var out []DispatchRow
	for rows.Next() {
		var d DispatchRow
		var dispatchedAt string
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.WorkerID, &d.Pathway, &d.Depth, &dispatchedAt, &d.Status, &d.InputTokens, &d.OutputTokens, &d.CostUSD); err != nil {
			return nil, fmt.Errorf("ledger: scan stuck dispatch: %w", err)
		}
		d.DispatchedAt, _ = time.Parse(time.DateTime, dispatchedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ProjectCostUSD sums cost_usd across completed dispatches for a project.
// Nothing in this module compares the sum against the configured daily
// cost cap.
func (l *Ledger) ProjectCostUSD(projectID string) (float64, error) {
	var total float64
	err := l.db.QueryRow(
		`SELECT COALESCE(SUM(cost_usd), 0) FROM dispatches WHERE project_id = ? AND status = 'completed'`,
		projectID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ledger: project cost: %w", err)
	}
	return total, nil
}
