package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
)

// Run represents a row in the runs table plus its error records.
type Run struct {
	ID            string   `json:"id"`
	Source        string   `json:"source"`
	Language      string   `json:"language"`
	Success       bool     `json:"success"`
	TimedOut      bool     `json:"timed_out"`
	ExecutionTime *float64 `json:"execution_time"`
	ErrorCount    int      `json:"error_count"`
	Summary       string   `json:"summary"`
	Output        string   `json:"output"`
	CreatedAt     string   `json:"created_at"`
	// Errors is only populated by GetRun.
	Errors []analysis.ErrorRecord `json:"errors,omitempty"`
}

// Outcome rebuilds the analysed outcome the run was saved from.
func (r *Run) Outcome() analysis.Outcome {
	errs := r.Errors
	if errs == nil {
		errs = []analysis.ErrorRecord{}
	}
	return analysis.Outcome{
		Success:       r.Success,
		Output:        r.Output,
		ExecutionTime: r.ExecutionTime,
		TimedOut:      r.TimedOut,
		Language:      r.Language,
		Errors:        errs,
		HasErrors:     len(errs) > 0,
		Summary:       r.Summary,
	}
}

// SaveRun stores an outcome and its error records in one transaction and
// returns the new run id.
func (d *DB) SaveRun(source string, o analysis.Outcome) (string, error) {
	id := uuid.NewString()

	tx, err := d.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, source, language, success, timed_out, execution_time, error_count, summary, output)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, source, o.Language, o.Success, o.TimedOut, o.ExecutionTime, len(o.Errors), o.Summary, o.Output,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, e := range o.Errors {
		ctx := e.Context
		if ctx == nil {
			ctx = []string{}
		}
		encoded, err := json.Marshal(ctx)
		if err != nil {
			return "", fmt.Errorf("encode context: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO run_errors (run_id, seq, line, kind, message, context) VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, e.Line, string(e.Kind), e.Message, string(encoded),
		); err != nil {
			return "", fmt.Errorf("insert run error %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// Record implements the executor's recorder by saving the outcome.
func (d *DB) Record(source string, o analysis.Outcome) (string, error) {
	return d.SaveRun(source, o)
}

const runColumns = `id, source, language, success, timed_out, execution_time, error_count, summary, output, created_at`

func scanRun(s interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var execTime sql.NullFloat64
	if err := s.Scan(&r.ID, &r.Source, &r.Language, &r.Success, &r.TimedOut, &execTime,
		&r.ErrorCount, &r.Summary, &r.Output, &r.CreatedAt); err != nil {
		return nil, err
	}
	if execTime.Valid {
		v := execTime.Float64
		r.ExecutionTime = &v
	}
	return &r, nil
}

// GetRun returns a run with its error records, or nil if no run has that id.
func (d *DB) GetRun(id string) (*Run, error) {
	row := d.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	errs, err := d.getRunErrors(id)
	if err != nil {
		return nil, err
	}
	r.Errors = errs
	return r, nil
}

func (d *DB) getRunErrors(runID string) ([]analysis.ErrorRecord, error) {
	rows, err := d.conn.Query(
		`SELECT line, kind, message, context FROM run_errors WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get run errors: %w", err)
	}
	defer rows.Close()

	errs := []analysis.ErrorRecord{}
	for rows.Next() {
		var e analysis.ErrorRecord
		var kind, encoded string
		if err := rows.Scan(&e.Line, &kind, &e.Message, &encoded); err != nil {
			return nil, fmt.Errorf("scan run error: %w", err)
		}
		k, err := analysis.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		e.Kind = k
		if err := json.Unmarshal([]byte(encoded), &e.Context); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
		if e.Context == nil {
			e.Context = []string{}
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// ListRuns returns the most recent runs, newest first, without error records.
// A limit <= 0 returns every run.
func (d *DB) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}
