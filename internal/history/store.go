// Package history keeps a queryable SQLite record of every iteration and
// gate result across runs.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/ralph/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Iteration is a stored iteration row.
type Iteration struct {
	ID          int64
	RunID       string
	IssueID     string
	Iteration   int
	Score       float64
	TargetScore float64
	Verdict     models.Verdict
	BlockedTier int
	Duration    time.Duration
	APICalls    int
	Bonuses     []string
	RecordedAt  time.Time
	Gates       []GateRow
}

// GateRow is a stored gate result.
type GateRow struct {
	Gate          string
	Score         float64
	MaxScore      float64
	Passed        bool
	TimedOut      bool
	Outcome       models.GateOutcome
	Provider      string
	Duration      time.Duration
	AutoFixCount  int
	FindingsCount int
	Error         string
}

// Store manages the history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database at dbPath. ":memory:"
// opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each :memory: connection is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordIteration stores rec and its gate results. Re-recording the same
// (runID, iteration) replaces the earlier row.
func (s *Store) RecordIteration(ctx context.Context, runID, issueID string, rec models.IterationRecord) error {
	bonuses := "[]"
	if len(rec.Bonuses) > 0 {
		data, err := json.Marshal(rec.Bonuses)
		if err != nil {
			return fmt.Errorf("marshal bonuses: %w", err)
		}
		bonuses = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM gate_results WHERE iteration_id IN
		(SELECT id FROM iterations WHERE run_id = ? AND iteration = ?)`, runID, rec.Iteration); err != nil {
		return fmt.Errorf("clear gate results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM iterations WHERE run_id = ? AND iteration = ?`, runID, rec.Iteration); err != nil {
		return fmt.Errorf("clear iteration: %w", err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO iterations
		(run_id, issue_id, iteration, score, target_score, verdict, blocked_tier, duration_ms, api_calls, bonuses, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, issueID, rec.Iteration, rec.Score, rec.TargetScore, string(rec.Verdict), rec.BlockedTier,
		rec.Duration.Milliseconds(), rec.APICalls, bonuses, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert iteration: %w", err)
	}
	iterationID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get iteration id: %w", err)
	}

	for _, g := range rec.Gates {
		if _, err := tx.ExecContext(ctx, `INSERT INTO gate_results
			(iteration_id, gate, score, max_score, passed, timed_out, outcome, provider, duration_ms, auto_fix_count, findings_count, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			iterationID, g.Gate, g.Score, g.MaxScore, g.Passed, g.TimedOut, string(g.Outcome), g.ProviderLabel,
			g.Duration.Milliseconds(), g.AutoFixCount, len(g.Findings), g.Error); err != nil {
			return fmt.Errorf("insert gate result %s: %w", g.Gate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit iteration: %w", err)
	}
	return nil
}

// Iterations returns every stored iteration for issueID, oldest first,
// with gate rows attached.
func (s *Store) Iterations(ctx context.Context, issueID string) ([]*Iteration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, issue_id, iteration, score, target_score, verdict, blocked_tier, duration_ms, api_calls, bonuses, recorded_at
		FROM iterations
		WHERE issue_id = ?
		ORDER BY recorded_at ASC, id ASC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var out []*Iteration
	byID := map[int64]*Iteration{}
	for rows.Next() {
		it := &Iteration{}
		var verdict string
		var blockedTier, durationMs sql.NullInt64
		var bonuses sql.NullString
		if err := rows.Scan(&it.ID, &it.RunID, &it.IssueID, &it.Iteration, &it.Score, &it.TargetScore,
			&verdict, &blockedTier, &durationMs, &it.APICalls, &bonuses, &it.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan iteration row: %w", err)
		}
		it.Verdict = models.Verdict(verdict)
		it.BlockedTier = -1
		if blockedTier.Valid {
			it.BlockedTier = int(blockedTier.Int64)
		}
		if durationMs.Valid {
			it.Duration = time.Duration(durationMs.Int64) * time.Millisecond
		}
		if bonuses.Valid && bonuses.String != "" {
			if err := json.Unmarshal([]byte(bonuses.String), &it.Bonuses); err != nil {
				return nil, fmt.Errorf("unmarshal bonuses: %w", err)
			}
		}
		out = append(out, it)
		byID[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iteration rows: %w", err)
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}

	gateRows, err := s.db.QueryContext(ctx, `SELECT g.iteration_id, g.gate, g.score, g.max_score, g.passed, g.timed_out, g.outcome, g.provider, g.duration_ms, g.auto_fix_count, g.findings_count, g.error
		FROM gate_results g
		JOIN iterations i ON i.id = g.iteration_id
		WHERE i.issue_id = ?
		ORDER BY g.id ASC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("query gate results: %w", err)
	}
	defer gateRows.Close()

	for gateRows.Next() {
		var iterationID int64
		var g GateRow
		var outcome, provider, errText sql.NullString
		var durationMs sql.NullInt64
		if err := gateRows.Scan(&iterationID, &g.Gate, &g.Score, &g.MaxScore, &g.Passed, &g.TimedOut,
			&outcome, &provider, &durationMs, &g.AutoFixCount, &g.FindingsCount, &errText); err != nil {
			return nil, fmt.Errorf("scan gate row: %w", err)
		}
		g.Outcome = models.GateOutcome(outcome.String)
		g.Provider = provider.String
		g.Error = errText.String
		g.Duration = time.Duration(durationMs.Int64) * time.Millisecond
		if it, ok := byID[iterationID]; ok {
			it.Gates = append(it.Gates, g)
		}
	}
	if err := gateRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gate rows: %w", err)
	}

	return out, nil
}

// BestScore returns the highest iteration score recorded for runID, or 0
// when the run has no iterations.
func (s *Store) BestScore(ctx context.Context, runID string) (float64, error) {
	var best sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(score) FROM iterations WHERE run_id = ?`, runID).Scan(&best); err != nil {
		return 0, fmt.Errorf("query best score: %w", err)
	}
	return best.Float64, nil
}

// GateFailureCounts returns, per gate, how many stored iterations of
// issueID had that gate not passing.
func (s *Store) GateFailureCounts(ctx context.Context, issueID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT g.gate, COUNT(*)
		FROM gate_results g
		JOIN iterations i ON i.id = g.iteration_id
		WHERE i.issue_id = ? AND g.passed = 0
		GROUP BY g.gate`, issueID)
	if err != nil {
		return nil, fmt.Errorf("query gate failures: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var gate string
		var n int
		if err := rows.Scan(&gate, &n); err != nil {
			return nil, fmt.Errorf("scan gate failure row: %w", err)
		}
		counts[gate] = n
	}
	return counts, rows.Err()
}
