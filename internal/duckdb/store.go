// Package duckdb persists reconciliation runs and per-variant decisions in
// DuckDB so they can be queried after the action lists were emitted.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for alignment results.
type Store struct {
	db *sql.DB
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

	s := &Store{db: db}
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

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS align_runs (
			run_id VARCHAR PRIMARY KEY,
			mode VARCHAR,
			reference VARCHAR,
			reference_size BIGINT,
			reference_mtime TIMESTAMP,
			target VARCHAR,
			target_size BIGINT,
			target_mtime TIMESTAMP,
			ref_total BIGINT,
			kept BIGINT,
			flipped BIGINT,
			removed BIGINT,
			dummy BIGINT,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			run_id VARCHAR,
			seq BIGINT,
			target_id VARCHAR,
			ref_id VARCHAR,
			chrom VARCHAR,
			pos BIGINT,
			action VARCHAR,
			relationship VARCHAR,
			palindromic BOOLEAN,
			reason VARCHAR,
			PRIMARY KEY (run_id, target_id)
		)`,
		`CREATE TABLE IF NOT EXISTS dummies (
			run_id VARCHAR,
			seq BIGINT,
			ref_id VARCHAR,
			chrom VARCHAR,
			cm DOUBLE,
			pos BIGINT,
			allele1 VARCHAR,
			allele2 VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
