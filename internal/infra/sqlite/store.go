// Package sqlite persists run reports in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when no stored run matches an ID.
var ErrRunNotFound = errors.New("run not found")

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ ports.RunReportStore = (*Store)(nil)

// Store implements ports.RunReportStore.
type Store struct {
	db *sql.DB
}

// StoredRun is a persisted run report. Stored test cases keep only their numbers.
type StoredRun struct {
	ID         string
	JobID      string
	SolutionID string
	Language   execution.Language
	Result     *execution.MultiTestResult
	Error      string
	CreatedAt  time.Time
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveRunReport implements ports.RunReportStore.
func (s *Store) SaveRunReport(ctx context.Context, report execution.RunReport) error {
	_, err := s.Save(ctx, report)
	return err
}

// Save stores report and returns the generated run ID.
func (s *Store) Save(ctx context.Context, report execution.RunReport) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		compilation execution.CompilationOutcome
		summary     execution.Summary
		errMsg      string
	)
	if report.Result != nil {
		compilation = report.Result.Compilation
		summary = report.Result.Summary()
	}
	if report.Err != nil {
		errMsg = report.Err.Error()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, job_id, solution_id, language, compilation_status, diagnostic,
		                  compile_ns, total, passed, total_time_ns, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, report.Job.ID, report.Job.Solution.ID, string(report.Job.Solution.Language),
		string(compilation.Status), compilation.Diagnostic, compilation.Duration.Nanoseconds(),
		summary.Total, summary.Passed, summary.TotalTimeNano, errMsg,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	if report.Result != nil {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO test_outcomes (run_id, idx, number, status, reason, exit_code,
			                           duration_ns, stdout, stderr, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("preparing outcome insert: %w", err)
		}
		defer stmt.Close()

		for idx, test := range report.Result.Tests {
			if _, err := stmt.ExecContext(ctx,
				runID, idx, test.Case.Number, string(test.Status), string(test.Reason),
				test.ExitCode, test.Duration.Nanoseconds(), test.Stdout, test.Stderr, test.Error,
			); err != nil {
				return "", fmt.Errorf("inserting outcome %d: %w", idx, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// GetRun loads a stored run with its outcomes.
func (s *Store) GetRun(ctx context.Context, id string) (*StoredRun, error) {
	var (
		run         StoredRun
		language    string
		status      string
		diagnostic  string
		compileNano int64
		createdAt   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, solution_id, language, compilation_status, diagnostic, compile_ns, error, created_at
		FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.JobID, &run.SolutionID, &language, &status, &diagnostic, &compileNano, &run.Error, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	run.Language = execution.Language(language)
	run.CreatedAt, _ = time.Parse(timeLayout, createdAt)

	if status == "" {
		return &run, nil
	}

	outcomes, err := s.outcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	result := execution.Aggregate(execution.CompilationOutcome{
		Status:     execution.CompilationStatus(status),
		Diagnostic: diagnostic,
		Duration:   time.Duration(compileNano),
	}, outcomes)
	run.Result = &result
	return &run, nil
}

// ListRunIDs returns the IDs of runs stored for jobID, newest first.
func (s *Store) ListRunIDs(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM runs WHERE job_id = ? ORDER BY created_at DESC, rowid DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) outcomes(ctx context.Context, runID string) ([]execution.TestOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, status, reason, exit_code, duration_ns, stdout, stderr, error
		FROM test_outcomes WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []execution.TestOutcome
	for rows.Next() {
		var (
			outcome  execution.TestOutcome
			status   string
			reason   string
			duration int64
		)
		if err := rows.Scan(&outcome.Case.Number, &status, &reason, &outcome.ExitCode, &duration,
			&outcome.Stdout, &outcome.Stderr, &outcome.Error); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		outcome.Status = execution.TestStatus(status)
		outcome.Reason = execution.FailureReason(reason)
		outcome.Duration = time.Duration(duration)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
