// Package history persists finished run reports in SQLite so results can
// be compared across runs.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/studiowebux/sqlstress/internal/migrations"
	"github.com/studiowebux/sqlstress/stresstest"
)

// ErrNotFound is returned when a run id has no stored report.
var ErrNotFound = errors.New("run not found")

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	Status        string    `json:"status"`
	Cancelled     bool      `json:"cancelled,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	TotalExecuted int       `json:"total_executed"`
	Throughput    float64   `json:"throughput"`
}

// Store handles run report persistence.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens or creates the history database at path and brings its
// schema up to date. Parent directories are created as needed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" && !memoryPath(path) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if memoryPath(path) {
		// An in-memory database exists per connection, so the pool must
		// not grow past one.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := migrations.Apply(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, log: logger}, nil
}

func memoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport stores a finalized report. Saving the same run id again
// replaces the stored row.
func (s *Store) SaveReport(report *stresstest.AggregateReport) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("report has no run id")
	}

	workersJSON, err := json.Marshal(report.Workers)
	if err != nil {
		return fmt.Errorf("failed to marshal worker results: %w", err)
	}
	errorsJSON, err := json.Marshal(report.ErrorsByKind)
	if err != nil {
		return fmt.Errorf("failed to marshal error breakdown: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO runs (
			run_id, status, cancelled, started_at, ended_at, elapsed_ns,
			total_executed, total_success, total_failure, throughput,
			min_latency_ns, max_latency_ns, mean_latency_ns,
			p50_latency_ns, p90_latency_ns, p95_latency_ns, p99_latency_ns,
			workers_json, errors_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.Status,
		report.Cancelled,
		report.StartedAt.UnixMilli(),
		report.EndedAt.UnixMilli(),
		int64(report.Elapsed),
		report.TotalExecuted,
		report.TotalSuccess,
		report.TotalFailure,
		report.Throughput,
		int64(report.MinLatency),
		int64(report.MaxLatency),
		int64(report.MeanLatency),
		int64(report.P50),
		int64(report.P90),
		int64(report.P95),
		int64(report.P99),
		string(workersJSON),
		string(errorsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", report.RunID, err)
	}

	s.log.Debug("run saved", "run_id", report.RunID, "status", report.Status)
	return nil
}

// GetReport loads a stored report by run id.
func (s *Store) GetReport(runID string) (*stresstest.AggregateReport, error) {
	row := s.db.QueryRow(`
		SELECT run_id, status, cancelled, started_at, ended_at, elapsed_ns,
		       total_executed, total_success, total_failure, throughput,
		       min_latency_ns, max_latency_ns, mean_latency_ns,
		       p50_latency_ns, p90_latency_ns, p95_latency_ns, p99_latency_ns,
		       workers_json, COALESCE(errors_json, '')
		FROM runs
		WHERE run_id = ?
	`, runID)

	var (
		report      stresstest.AggregateReport
		startedAt   int64
		endedAt     int64
		elapsed     int64
		minLat      int64
		maxLat      int64
		meanLat     int64
		p50         int64
		p90         int64
		p95         int64
		p99         int64
		workersJSON string
		errorsJSON  string
	)

	err := row.Scan(
		&report.RunID,
		&report.Status,
		&report.Cancelled,
		&startedAt,
		&endedAt,
		&elapsed,
		&report.TotalExecuted,
		&report.TotalSuccess,
		&report.TotalFailure,
		&report.Throughput,
		&minLat,
		&maxLat,
		&meanLat,
		&p50,
		&p90,
		&p95,
		&p99,
		&workersJSON,
		&errorsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	report.StartedAt = time.UnixMilli(startedAt)
	report.EndedAt = time.UnixMilli(endedAt)
	report.Elapsed = time.Duration(elapsed)
	report.MinLatency = time.Duration(minLat)
	report.MaxLatency = time.Duration(maxLat)
	report.MeanLatency = time.Duration(meanLat)
	report.P50 = time.Duration(p50)
	report.P90 = time.Duration(p90)
	report.P95 = time.Duration(p95)
	report.P99 = time.Duration(p99)

	if err := json.Unmarshal([]byte(workersJSON), &report.Workers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker results: %w", err)
	}
	if errorsJSON != "" {
		if err := json.Unmarshal([]byte(errorsJSON), &report.ErrorsByKind); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error breakdown: %w", err)
		}
	}

	return &report, nil
}

// ListRuns returns stored runs newest first. A positive limit caps the
// result.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	query := `
		SELECT run_id, status, cancelled, started_at, total_executed, throughput
		FROM runs
		ORDER BY started_at DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			summary   RunSummary
			startedAt int64
		)
		err := rows.Scan(
			&summary.RunID,
			&summary.Status,
			&summary.Cancelled,
			&startedAt,
			&summary.TotalExecuted,
			&summary.Throughput,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		summary.StartedAt = time.UnixMilli(startedAt)
		runs = append(runs, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a stored run.
func (s *Store) DeleteRun(runID string) error {
	res, err := s.db.Exec("DELETE FROM runs WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
