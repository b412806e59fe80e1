package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syncount/syncount/internal/count"
)

// Run identifies one invocation whose artifacts are stored together.
type Run struct {
	ID        string
	Command   string
	StartedAt time.Time
}

// BeginRun registers a new run and returns its id.
func (s *Store) BeginRun(command string) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Command:   command,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`INSERT INTO runs (run_id, command, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Command, run.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordInputs stores the fingerprints of the files a run read, keyed by role
// (e.g. "ccds", "constraint").
func (s *Store) RecordInputs(runID string, inputs map[string]FileFingerprint) error {
	for role, fp := range inputs {
		_, err := s.db.Exec(`INSERT INTO run_inputs (run_id, role, path, size, mod_time) VALUES (?, ?, ?, ?, ?)`,
			runID, role, fp.Path, fp.Size, fp.ModTime.UTC())
		if err != nil {
			return fmt.Errorf("insert run input %s: %w", role, err)
		}
	}
	return nil
}

// FinishRun stores the summary counters of a run.
func (s *Store) FinishRun(runID string, sum count.RunSummary) error {
	d := sum.Diagnostics
	res, err := s.db.Exec(`UPDATE runs SET
		finished_at=?, files=?, files_failed=?, files_missing=?,
		accepted=?, allele_mismatch=?, class_filtered=?, malformed=?, reference_error=?,
		counted=?, unmatched=?, conflicts=?
		WHERE run_id=?`,
		time.Now().UTC(), int64(sum.Files), int64(sum.FilesFailed), int64(sum.Missing),
		d.Accepted, d.AlleleMismatch, d.ClassFiltered, d.Malformed, d.ReferenceError,
		sum.Counted, int64(sum.Unmatched), int64(sum.Conflicts),
		runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run: run %s not found", runID)
	}
	return nil
}

// RunSummary reads back the stored summary of a finished run.
func (s *Store) RunSummary(runID string) (count.RunSummary, error) {
	var sum count.RunSummary
	var files, failed, missing, accepted, mismatch, filtered, malformed, refErr, counted, unmatched, confl sql.NullInt64
	err := s.db.QueryRow(`SELECT
		files, files_failed, files_missing,
		accepted, allele_mismatch, class_filtered, malformed, reference_error,
		counted, unmatched, conflicts
		FROM runs WHERE run_id=?`, runID).Scan(
		&files, &failed, &missing,
		&accepted, &mismatch, &filtered, &malformed, &refErr,
		&counted, &unmatched, &confl)
	if errors.Is(err, sql.ErrNoRows) {
		return sum, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return sum, fmt.Errorf("query run: %w", err)
	}

	sum.Files = int(files.Int64)
	sum.FilesFailed = int(failed.Int64)
	sum.FilesOK = sum.Files - sum.FilesFailed
	sum.Missing = int(missing.Int64)
	sum.Diagnostics.Accepted = accepted.Int64
	sum.Diagnostics.AlleleMismatch = mismatch.Int64
	sum.Diagnostics.ClassFiltered = filtered.Int64
	sum.Diagnostics.Malformed = malformed.Int64
	sum.Diagnostics.ReferenceError = refErr.Int64
	sum.Counted = counted.Int64
	sum.Unmatched = int(unmatched.Int64)
	sum.Conflicts = int(confl.Int64)
	return sum, nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun() (Run, error) {
	var run Run
	err := s.db.QueryRow(`SELECT run_id, command, started_at FROM runs ORDER BY started_at DESC LIMIT 1`).
		Scan(&run.ID, &run.Command, &run.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("no runs recorded")
	}
	if err != nil {
		return Run{}, fmt.Errorf("query latest run: %w", err)
	}
	return run, nil
}
