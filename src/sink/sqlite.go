package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	// pure Go SQLite driver
	_ "modernc.org/sqlite"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
)

const runsSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id        TEXT PRIMARY KEY,
		period_start  TEXT NOT NULL,
		period_end    TEXT NOT NULL,
		total_records INTEGER NOT NULL,
		ssids         TEXT NOT NULL,
		body          TEXT NOT NULL,
		generated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_start ON runs(period_start);
`

const upsertRun = `
	INSERT INTO runs (run_id, period_start, period_end, total_records, ssids, body, generated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		period_start = excluded.period_start,
		period_end = excluded.period_end,
		total_records = excluded.total_records,
		ssids = excluded.ssids,
		body = excluded.body,
		generated_at = excluded.generated_at`

// SQLiteSink archives runs in a SQLite database, one row per run id. Re-exporting a run
// replaces its row.
type SQLiteSink struct {
	db *sql.DB
}

// ArchivedRun is one row of the runs table.
type ArchivedRun struct {
	RunID        string
	Start        string
	End          string
	TotalRecords int
	SSIDs        []string
	Body         string
}

// OpenSQLite opens (and if needed creates) the archive at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Close() error { return s.db.Close() }

func (s *SQLiteSink) Write(ctx context.Context, exp *analysis.Export) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, upsertRun)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()
	for i := range exp.Runs {
		run := &exp.Runs[i]
		body, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("encode run %s: %w", run.RunID, err)
		}
		if _, err := stmt.ExecContext(ctx, run.RunID, run.Period.Start, run.Period.End,
			run.TotalRecords, strings.Join(run.SSIDs, ","), string(body), exp.GeneratedAt); err != nil {
			return fmt.Errorf("upsert run %s: %w", run.RunID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs lists archived runs, newest first.
func (s *SQLiteSink) Runs(ctx context.Context) ([]ArchivedRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, period_start, period_end, total_records, ssids, body
		FROM runs ORDER BY period_start DESC, run_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []ArchivedRun
	for rows.Next() {
		var r ArchivedRun
		var ssids string
		if err := rows.Scan(&r.RunID, &r.Start, &r.End, &r.TotalRecords, &ssids, &r.Body); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if ssids != "" {
			r.SSIDs = strings.Split(ssids, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
