// Package output writes the count, per-interval, unmatched, and diagnostics
// tables of a run.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/syncount/syncount/internal/count"
	"github.com/syncount/syncount/internal/interval"
	"github.com/syncount/syncount/internal/mutation"
)

// Column layouts.
var (
	CountColumns         = []string{"gene", "region_category", "variant_class", "sample_id", "count"}
	IntervalCountColumns = append(append([]string{}, interval.TSVHeader...), "silent_count", "missense_count")
	DiagnosticsColumns   = []string{"file", "accepted", "allele_mismatch", "class_filtered", "malformed", "reference_error", "unmatched", "conflicts", "error"}
)

// tabWriter is the shared tab-delimited row writer.
type tabWriter struct {
	w       *bufio.Writer
	columns []string
}

func newTabWriter(w io.Writer, columns []string) tabWriter {
	return tabWriter{w: bufio.NewWriter(w), columns: columns}
}

// WriteHeader writes the header line.
func (tw tabWriter) WriteHeader() error {
	return tw.writeRow(tw.columns)
}

func (tw tabWriter) writeRow(values []string) error {
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw tabWriter) Flush() error {
	return tw.w.Flush()
}

// CountWriter writes the count table.
type CountWriter struct {
	tabWriter
}

// NewCountWriter creates a count table writer.
func NewCountWriter(w io.Writer) *CountWriter {
	return &CountWriter{newTabWriter(w, CountColumns)}
}

// Write writes every entry of the table in its deterministic order.
func (cw *CountWriter) Write(t *count.Table) error {
	for _, e := range t.Entries() {
		err := cw.writeRow([]string{
			e.GeneID,
			e.Category.String(),
			e.Class.String(),
			e.SampleID,
			strconv.FormatInt(e.Count, 10),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// IntervalCountWriter writes every interval with its silent and missense
// tallies. Intervals with no mutations are written with zero counts.
type IntervalCountWriter struct {
	tabWriter
}

// NewIntervalCountWriter creates a per-interval tally writer.
func NewIntervalCountWriter(w io.Writer) *IntervalCountWriter {
	return &IntervalCountWriter{newTabWriter(w, IntervalCountColumns)}
}

// Write writes ivs in the given order with their tallies.
func (iw *IntervalCountWriter) Write(ivs []interval.GenomicInterval, tallies map[interval.GenomicInterval]count.Tally) error {
	for _, iv := range ivs {
		t := tallies[iv]
		err := iw.writeRow([]string{
			iv.Chrom,
			strconv.FormatInt(iv.Start, 10),
			strconv.FormatInt(iv.End, 10),
			iv.GeneID,
			iv.Category.String(),
			strconv.FormatInt(t.Silent, 10),
			strconv.FormatInt(t.Missense, 10),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DiagnosticsWriter writes one row per processed mutation file.
type DiagnosticsWriter struct {
	tabWriter
}

// NewDiagnosticsWriter creates a per-file diagnostics writer.
func NewDiagnosticsWriter(w io.Writer) *DiagnosticsWriter {
	return &DiagnosticsWriter{newTabWriter(w, DiagnosticsColumns)}
}

// Write writes the reports in order.
func (dw *DiagnosticsWriter) Write(reports []count.FileReport) error {
	for _, r := range reports {
		errText := "-"
		if r.Err != nil {
			errText = strings.ReplaceAll(r.Err.Error(), "\t", " ")
		}
		d := r.Diagnostics
		err := dw.writeRow([]string{
			r.Path,
			strconv.FormatInt(d.Accepted, 10),
			strconv.FormatInt(d.AlleleMismatch, 10),
			strconv.FormatInt(d.ClassFiltered, 10),
			strconv.FormatInt(d.Malformed, 10),
			strconv.FormatInt(d.ReferenceError, 10),
			strconv.Itoa(r.Unmatched),
			strconv.Itoa(r.Conflicts),
			errText,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteUnmatched writes records that matched no interval using the validated
// mutation table layout, so they can be re-counted against another interval set.
func WriteUnmatched(w io.Writer, records []mutation.Record) error {
	mw := mutation.NewWriter(w)
	if err := mw.WriteHeader(); err != nil {
		return err
	}
	if err := mw.Write(records); err != nil {
		return err
	}
	return mw.Flush()
}
