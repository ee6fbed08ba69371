// Package store persists experiment reports in a SQL results store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dbsmedya/mstharness/internal/logger"
	"github.com/dbsmedya/mstharness/internal/report"
	"github.com/dbsmedya/mstharness/internal/sqlutil"
	"github.com/dbsmedya/mstharness/internal/types"
)

// RunSummary is one row of the run table.
type RunSummary struct {
	RunID             string
	StartedAt         time.Time
	CompletedAt       time.Time
	Total             int
	Results           int
	Failures          int
	ValidationsPassed int
	Mismatches        int
	Disconnected      int
	MaxCostDifference float64
}

// Store writes reports to the run, result and failure tables.
//
// Responsibilities:
// - Create the tables idempotently
// - Persist a whole report atomically
// - List recent runs
type Store struct {
	db      *sql.DB
	dialect string
	logger  *logger.Logger

	runTable     string
	resultTable  string
	failureTable string
}

// New creates a Store. dialect is "mysql" or "sqlite"; prefix is prepended to every table name.
func New(db *sql.DB, dialect, prefix string, log *logger.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if dialect != "mysql" && dialect != "sqlite" {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if log == nil {
		log = logger.NewDefault()
	}

	s := &Store{db: db, dialect: dialect, logger: log}
	var err error
	if s.runTable, err = sqlutil.TableName(prefix, "run"); err != nil {
		return nil, err
	}
	if s.resultTable, err = sqlutil.TableName(prefix, "result"); err != nil {
		return nil, err
	}
	if s.failureTable, err = sqlutil.TableName(prefix, "failure"); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) tableSuffix() string {
	if s.dialect == "mysql" {
		return " ENGINE=InnoDB"
	}
	return ""
}

func (s *Store) createStatements() []string {
	suffix := s.tableSuffix()
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + s.runTable + ` (
	run_id VARCHAR(36) PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP NOT NULL,
	total INTEGER NOT NULL,
	results INTEGER NOT NULL,
	failures INTEGER NOT NULL,
	validations_passed INTEGER NOT NULL,
	mismatches INTEGER NOT NULL,
	disconnected INTEGER NOT NULL,
	max_cost_difference DOUBLE NOT NULL
)` + suffix,
		`CREATE TABLE IF NOT EXISTS ` + s.resultTable + ` (
	run_id VARCHAR(36) NOT NULL,
	instance_id INTEGER NOT NULL,
	vertex_count INTEGER NOT NULL,
	edge_count INTEGER NOT NULL,
	cost_primary DOUBLE NOT NULL,
	time_primary DOUBLE NOT NULL,
	cost_secondary DOUBLE NOT NULL,
	time_secondary DOUBLE NOT NULL,
	memory_primary DOUBLE,
	memory_secondary DOUBLE,
	is_connected TINYINT NOT NULL,
	validation_passed TINYINT NOT NULL,
	solver_validation TINYINT NOT NULL,
	output_schema VARCHAR(32) NOT NULL,
	elapsed_ms BIGINT NOT NULL,
	PRIMARY KEY (run_id, instance_id)
)` + suffix,
		`CREATE TABLE IF NOT EXISTS ` + s.failureTable + ` (
	run_id VARCHAR(36) NOT NULL,
	instance_id INTEGER NOT NULL,
	kind VARCHAR(32) NOT NULL,
	detail TEXT,
	PRIMARY KEY (run_id, instance_id, kind)
)` + suffix,
	}
}

// InitializeTables creates the store tables if they don't exist.
// This method is idempotent and safe to call on every run.
func (s *Store) InitializeTables(ctx context.Context) error {
	s.logger.Debug("Initializing results store tables")

	for _, stmt := range s.createStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create results store table: %w", err)
		}
	}

	s.logger.Debug("Results store tables initialized")
	return nil
}

// SaveReport writes the run, its results and its failure ledger in one transaction.
func (s *Store) SaveReport(ctx context.Context, r *report.ExperimentReport) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warnf("Failed to roll back report %s: %v", r.RunID, rbErr)
			}
		}
	}()

	sum := r.Summary
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO "+s.runTable+" (run_id, started_at, completed_at, total, results, failures, validations_passed, mismatches, disconnected, max_cost_difference) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.RunID, r.StartedAt.UTC(), r.CompletedAt.UTC(), sum.Total, sum.Results, sum.Failures,
		sum.ValidationsPassed, sum.Mismatches, sum.Disconnected, sum.MaxCostDifference,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if err = s.insertResults(ctx, tx, r); err != nil {
		return err
	}

	failures := make([]types.FailureRecord, 0, len(r.Failures)+len(r.Mismatches))
	failures = append(failures, r.Failures...)
	failures = append(failures, r.Mismatches...)
	if err = s.insertFailures(ctx, tx, r.RunID, failures); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}

	s.logger.Infow("Report saved to results store",
		"run_id", r.RunID,
		"results", len(r.Results),
		"failures", len(failures),
	)
	return nil
}

func (s *Store) insertResults(ctx context.Context, tx *sql.Tx, r *report.ExperimentReport) error {
	if len(r.Results) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+s.resultTable+" (run_id, instance_id, vertex_count, edge_count, cost_primary, time_primary, cost_secondary, time_secondary, memory_primary, memory_secondary, is_connected, validation_passed, solver_validation, output_schema, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			s.logger.Warnf("Failed to close statement: %v", err)
		}
	}()

	for _, rec := range r.Results {
		if _, err := stmt.ExecContext(ctx,
			r.RunID, rec.InstanceID, rec.VertexCount, rec.EdgeCount,
			rec.CostPrimary, rec.TimePrimary, rec.CostSecondary, rec.TimeSecondary,
			nullFloat(rec.MemoryPrimary), nullFloat(rec.MemorySecondary),
			boolInt(rec.IsConnected), boolInt(rec.ValidationPassed), boolInt(rec.SolverValidation),
			rec.Schema, rec.Elapsed.Milliseconds(),
		); err != nil {
			return fmt.Errorf("failed to insert result for instance %d: %w", rec.InstanceID, err)
		}
	}
	return nil
}

func (s *Store) insertFailures(ctx context.Context, tx *sql.Tx, runID string, failures []types.FailureRecord) error {
	if len(failures) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+s.failureTable+" (run_id, instance_id, kind, detail) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare failure insert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			s.logger.Warnf("Failed to close statement: %v", err)
		}
	}()

	for _, f := range failures {
		if _, err := stmt.ExecContext(ctx, runID, f.InstanceID, string(f.Kind), f.Detail); err != nil {
			return fmt.Errorf("failed to insert failure for instance %d: %w", f.InstanceID, err)
		}
	}
	return nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, started_at, completed_at, total, results, failures, validations_passed, mismatches, disconnected, max_cost_difference FROM "+
			s.runTable+" ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.RunID, &run.StartedAt, &run.CompletedAt, &run.Total, &run.Results,
			&run.Failures, &run.ValidationsPassed, &run.Mismatches, &run.Disconnected, &run.MaxCostDifference); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
