package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/syncount/syncount/internal/count"
	"github.com/syncount/syncount/internal/interval"
	"github.com/syncount/syncount/internal/mutation"
)

// appendRows opens an appender on table and calls fn to append rows.
func (s *Store) appendRows(table string, fn func(a *goduckdb.Appender) error) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender for %s: %w", table, err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// WriteIntervals stores the interval set of a run.
func (s *Store) WriteIntervals(runID string, ivs []interval.GenomicInterval) error {
	if len(ivs) == 0 {
		return nil
	}
	return s.appendRows("intervals", func(a *goduckdb.Appender) error {
		for _, iv := range ivs {
			if err := a.AppendRow(runID, iv.Chrom, iv.Start, iv.End, iv.GeneID, iv.Category.String()); err != nil {
				return fmt.Errorf("append interval: %w", err)
			}
		}
		return nil
	})
}

// WriteMutations stores validated records of a run.
func (s *Store) WriteMutations(runID string, records []mutation.Record) error {
	return s.writeRecords("mutations", runID, records)
}

// WriteUnmatched stores records that matched no interval.
func (s *Store) WriteUnmatched(runID string, records []mutation.Record) error {
	return s.writeRecords("unmatched", runID, records)
}

func (s *Store) writeRecords(table, runID string, records []mutation.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.appendRows(table, func(a *goduckdb.Appender) error {
		for _, r := range records {
			if err := a.AppendRow(
				runID, r.SourceFile, r.SampleID, r.GeneSymbol,
				r.Chrom, r.Position, r.Ref, r.Alt, r.Class.String(),
			); err != nil {
				return fmt.Errorf("append %s record: %w", table, err)
			}
		}
		return nil
	})
}

// WriteCounts stores the count table of a run.
func (s *Store) WriteCounts(runID string, t *count.Table) error {
	if t.Len() == 0 {
		return nil
	}
	return s.appendRows("counts", func(a *goduckdb.Appender) error {
		for _, e := range t.Entries() {
			if err := a.AppendRow(runID, e.GeneID, e.Category.String(), e.Class.String(), e.SampleID, e.Count); err != nil {
				return fmt.Errorf("append count: %w", err)
			}
		}
		return nil
	})
}

// WriteDiagnostics stores per-file diagnostics of a run.
func (s *Store) WriteDiagnostics(runID string, reports []count.FileReport) error {
	if len(reports) == 0 {
		return nil
	}
	return s.appendRows("file_diagnostics", func(a *goduckdb.Appender) error {
		for _, r := range reports {
			var errText any
			if r.Err != nil {
				errText = r.Err.Error()
			}
			d := r.Diagnostics
			if err := a.AppendRow(
				runID, r.Path,
				d.Accepted, d.AlleleMismatch, d.ClassFiltered, d.Malformed, d.ReferenceError,
				int64(r.Unmatched), int64(r.Conflicts), errText,
			); err != nil {
				return fmt.Errorf("append diagnostics: %w", err)
			}
		}
		return nil
	})
}

// CountsForGene returns the count entries of one gene in a run, ordered by
// category, class, then sample.
func (s *Store) CountsForGene(runID, gene string) ([]count.Entry, error) {
	rows, err := s.db.Query(`SELECT
		gene, region_category, variant_class, sample_id, count
		FROM counts
		WHERE run_id=? AND gene=?
		ORDER BY region_category, variant_class, sample_id`, runID, gene)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	var entries []count.Entry
	for rows.Next() {
		var e count.Entry
		var category, class string
		if err := rows.Scan(&e.GeneID, &category, &class, &e.SampleID, &e.Count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		if e.Category, err = interval.ParseCategory(category); err != nil {
			return nil, err
		}
		if e.Class, err = mutation.ParseVariantClass(class); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return entries, nil
}

// CategoryTotals sums counts per region category and variant class for a run.
func (s *Store) CategoryTotals(runID string) (map[interval.Category]count.Tally, error) {
	rows, err := s.db.Query(`SELECT region_category, variant_class, SUM(count)::BIGINT
		FROM counts
		WHERE run_id=?
		GROUP BY region_category, variant_class`, runID)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[interval.Category]count.Tally)
	for rows.Next() {
		var category, class string
		var n int64
		if err := rows.Scan(&category, &class, &n); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		c, err := interval.ParseCategory(category)
		if err != nil {
			return nil, err
		}
		t := totals[c]
		switch class {
		case mutation.Silent.String():
			t.Silent += n
		case mutation.Missense.String():
			t.Missense += n
		}
		totals[c] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return totals, nil
}

// TableRows returns the number of rows a run stored in table.
func (s *Store) TableRows(runID, table string) (int64, error) {
	switch table {
	case "intervals", "mutations", "counts", "unmatched", "file_diagnostics", "run_inputs":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE run_id=?", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s rows: %w", table, err)
	}
	return n, nil
}
