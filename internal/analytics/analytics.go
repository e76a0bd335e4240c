package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// timestamp formats to try when parsing timestamps from the database
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

// NormalizeSince converts a user supplied --since value into the database
// timestamp format. Durations such as "24h" are taken relative to now.
func NormalizeSince(since string, now time.Time) (string, error) {
	if since == "" {
		return "", nil
	}
	if d, err := time.ParseDuration(since); err == nil {
		return now.UTC().Add(-d).Format(timestampFormats[0]), nil
	}
	if t, err := time.Parse("2006-01-02", since); err == nil {
		return t.Format(timestampFormats[0]), nil
	}
	t, err := parseTimestamp(since)
	if err != nil {
		return "", fmt.Errorf("invalid since value %q: want a duration, date or timestamp", since)
	}
	return t.Format(timestampFormats[0]), nil
}

// Stats is the aggregate view over recorded runs.
type Stats struct {
	Since      string           `json:"since,omitempty"`
	Totals     RunTotals        `json:"totals"`
	ErrorKinds []KindCount      `json:"error_kinds"`
	Times      ExecutionTimes   `json:"execution_time"`
	Sources    []SourceCount    `json:"sources"`
	Daily      []DailyRunCounts `json:"daily"`
}

// Summarize gathers every aggregate for runs created at or after since.
func Summarize(database DB, since string) (*Stats, error) {
	totals, err := QueryRunTotals(database, since)
	if err != nil {
		return nil, err
	}
	kinds, err := QueryErrorKinds(database, since)
	if err != nil {
		return nil, err
	}
	times, err := QueryExecutionTimes(database, since)
	if err != nil {
		return nil, err
	}
	sources, err := QuerySources(database, since)
	if err != nil {
		return nil, err
	}
	daily, err := QueryDailyRuns(database, since)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Since:      since,
		Totals:     *totals,
		ErrorKinds: kinds,
		Times:      *times,
		Sources:    sources,
		Daily:      daily,
	}, nil
}

// RunTotals holds run outcome counts.
type RunTotals struct {
	Total      int     `json:"total"`
	Succeeded  int     `json:"succeeded"`
	Failed     int     `json:"failed"`
	TimedOut   int     `json:"timed_out"`
	SuccessPct float64 `json:"success_pct"`
}

// QueryRunTotals counts runs by outcome. Timed out runs are not counted as
// failures.
func QueryRunTotals(database DB, since string) (*RunTotals, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN timed_out THEN 1 ELSE 0 END), 0)
		FROM runs`

	args := []interface{}{}
	if since != "" {
		query += ` WHERE created_at >= ?`
		args = append(args, since)
	}

	var t RunTotals
	if err := database.Conn().QueryRow(query, args...).Scan(&t.Total, &t.Succeeded, &t.TimedOut); err != nil {
		return nil, fmt.Errorf("query run totals: %w", err)
	}
	t.Failed = t.Total - t.Succeeded - t.TimedOut
	t.SuccessPct = pct(t.Succeeded, t.Total)
	return &t, nil
}

// KindCount holds the number of error records of one kind.
type KindCount struct {
	Kind  analysis.Kind `json:"kind"`
	Count int           `json:"count"`
	Pct   float64       `json:"pct"`
}

// QueryErrorKinds returns a count for every error kind, in taxonomy order.
// Kinds with no records are reported with a zero count.
func QueryErrorKinds(database DB, since string) ([]KindCount, error) {
	query := `
		SELECT e.kind, COUNT(*)
		FROM run_errors e
		JOIN runs r ON r.id = e.run_id`

	args := []interface{}{}
	if since != "" {
		query += ` WHERE r.created_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY e.kind`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error kinds: %w", err)
	}
	defer rows.Close()

	counts := make(map[analysis.Kind]int)
	total := 0
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan error kind: %w", err)
		}
		counts[analysis.Kind(kind)] = n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]KindCount, 0, len(analysis.Kinds))
	for _, k := range analysis.Kinds {
		results = append(results, KindCount{Kind: k, Count: counts[k], Pct: pct(counts[k], total)})
	}
	return results, nil
}

// ExecutionTimes holds execution time stats in milliseconds for runs that
// completed within their limit.
type ExecutionTimes struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	Max   float64 `json:"max_ms"`
}

// QueryExecutionTimes returns average and percentile execution times.
// Timed out runs have no execution time and are skipped.
func QueryExecutionTimes(database DB, since string) (*ExecutionTimes, error) {
	query := `SELECT execution_time FROM runs WHERE execution_time IS NOT NULL`

	args := []interface{}{}
	if since != "" {
		query += ` AND created_at >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution times: %w", err)
	}
	defer rows.Close()

	var millis []float64
	for rows.Next() {
		var seconds float64
		if err := rows.Scan(&seconds); err != nil {
			return nil, fmt.Errorf("scan execution time: %w", err)
		}
		millis = append(millis, seconds*1000)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Float64s(millis)
	t := &ExecutionTimes{
		Count: len(millis),
		Avg:   avg(millis),
		P50:   percentile(millis, 50),
		P95:   percentile(millis, 95),
	}
	if len(millis) > 0 {
		t.Max = math.Round(millis[len(millis)-1]*10) / 10
	}
	return t, nil
}

// SourceCount holds run counts per entry point (analyze, run, mcp, serve).
type SourceCount struct {
	Source     string  `json:"source"`
	Total      int     `json:"total"`
	SuccessPct float64 `json:"success_pct"`
}

// QuerySources returns run counts grouped by source, busiest first.
func QuerySources(database DB, since string) ([]SourceCount, error) {
	query := `
		SELECT source, COUNT(*),
			SUM(CASE WHEN success THEN 1 ELSE 0 END)
		FROM runs`

	args := []interface{}{}
	if since != "" {
		query += ` WHERE created_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY source ORDER BY COUNT(*) DESC, source`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var results []SourceCount
	for rows.Next() {
		var s SourceCount
		var succeeded int
		if err := rows.Scan(&s.Source, &s.Total, &succeeded); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		s.SuccessPct = pct(succeeded, s.Total)
		results = append(results, s)
	}
	return results, rows.Err()
}

// DailyRunCounts holds per-day outcome counts.
type DailyRunCounts struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	TimedOut  int    `json:"timed_out"`
}

// QueryDailyRuns returns run counts per calendar day, oldest first.
func QueryDailyRuns(database DB, since string) ([]DailyRunCounts, error) {
	query := `SELECT created_at, success, timed_out FROM runs`

	args := []interface{}{}
	if since != "" {
		query += ` WHERE created_at >= ?`
		args = append(args, since)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily runs: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]*DailyRunCounts)
	for rows.Next() {
		var ts string
		var success, timedOut bool
		if err := rows.Scan(&ts, &success, &timedOut); err != nil {
			return nil, fmt.Errorf("scan daily run: %w", err)
		}
		t, err := parseTimestamp(ts)
		if err != nil {
			continue
		}
		day := t.Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &DailyRunCounts{Date: day}
			byDay[day] = d
		}
		d.Total++
		if success {
			d.Succeeded++
		}
		if timedOut {
			d.TimedOut++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]DailyRunCounts, 0, len(byDay))
	for _, d := range byDay {
		results = append(results, *d)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Date < results[j].Date
	})
	return results, nil
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
