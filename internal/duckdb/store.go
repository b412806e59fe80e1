// Package duckdb persists run artifacts in DuckDB and caches built intervals.
// Built intervals are cached as gob files (fast, pure Go).
// Run artifacts are stored in DuckDB (queryable, append-only), each row
// tagged with the id of the run that produced it.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding run artifacts.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR,
		command VARCHAR,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		files BIGINT,
		files_failed BIGINT,
		files_missing BIGINT,
		accepted BIGINT,
		allele_mismatch BIGINT,
		class_filtered BIGINT,
		malformed BIGINT,
		reference_error BIGINT,
		counted BIGINT,
		unmatched BIGINT,
		conflicts BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS run_inputs (
		run_id VARCHAR,
		role VARCHAR,
		path VARCHAR,
		size BIGINT,
		mod_time TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS intervals (
		run_id VARCHAR,
		chrom VARCHAR,
		start_pos BIGINT,
		end_pos BIGINT,
		gene VARCHAR,
		region_category VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS mutations (
		run_id VARCHAR,
		source_file VARCHAR,
		sample_id VARCHAR,
		gene VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		variant_class VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS counts (
		run_id VARCHAR,
		gene VARCHAR,
		region_category VARCHAR,
		variant_class VARCHAR,
		sample_id VARCHAR,
		count BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS unmatched (
		run_id VARCHAR,
		source_file VARCHAR,
		sample_id VARCHAR,
		gene VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		variant_class VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS file_diagnostics (
		run_id VARCHAR,
		file VARCHAR,
		accepted BIGINT,
		allele_mismatch BIGINT,
		class_filtered BIGINT,
		malformed BIGINT,
		reference_error BIGINT,
		unmatched BIGINT,
		conflicts BIGINT,
		error VARCHAR
	)`,
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
