// Package count assigns validated mutations to region intervals and
// accumulates the per-gene, per-category, per-sample count table.
package count

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/interval"
	"github.com/syncount/syncount/internal/mutation"
)

// Key identifies one cell of the count table.
type Key struct {
	GeneID   string
	Category interval.Category
	Class    mutation.VariantClass
	SampleID string
}

// Entry is a key with its count.
type Entry struct {
	Key
	Count int64
}

// Table maps keys to non-negative counts. Counts only grow.
type Table struct {
	counts map[Key]int64
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{counts: make(map[Key]int64)}
}

// Inc adds one observation of k.
func (t *Table) Inc(k Key) {
	t.counts[k]++
}

// Get returns the count for k, zero if never observed.
func (t *Table) Get(k Key) int64 {
	return t.counts[k]
}

// Len returns the number of distinct keys.
func (t *Table) Len() int {
	return len(t.counts)
}

// Total returns the sum of all counts.
func (t *Table) Total() int64 {
	var n int64
	for _, c := range t.counts {
		n += c
	}
	return n
}

// Merge adds every count of other into t by per-key summation.
func (t *Table) Merge(other *Table) {
	for k, c := range other.counts {
		t.counts[k] += c
	}
}

// Entries returns all cells ordered by gene, category, class, then sample.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t.counts))
	for k, c := range t.counts {
		entries = append(entries, Entry{Key: k, Count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.GeneID != b.GeneID {
			return a.GeneID < b.GeneID
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		return a.SampleID < b.SampleID
	})
	return entries
}

// Tally is the per-interval silent and missense count.
type Tally struct {
	Silent   int64
	Missense int64
}

// IntervalConsistencyError reports a record that lies in more than one
// interval. Intervals are disjoint by construction, so this indicates a
// corrupted or hand-edited interval file.
type IntervalConsistencyError struct {
	Record  mutation.Record
	Matches []interval.GenomicInterval
}

func (e *IntervalConsistencyError) Error() string {
	parts := make([]string, len(e.Matches))
	for i, m := range e.Matches {
		parts[i] = fmt.Sprintf("%s:%d-%d %s %s", m.Chrom, m.Start, m.End, m.GeneID, m.Category)
	}
	return fmt.Sprintf("mutation %s:%d in %s matches %d intervals: %s",
		e.Record.Chrom, e.Record.Position, e.Record.SourceFile, len(e.Matches), strings.Join(parts, ", "))
}

// Result is the outcome of counting a batch of records.
type Result struct {
	Table       *Table
	Unmatched   []mutation.Record
	Conflicts   []*IntervalConsistencyError
	PerInterval map[interval.GenomicInterval]Tally
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{
		Table:       NewTable(),
		PerInterval: make(map[interval.GenomicInterval]Tally),
	}
}

// Merge folds other into r. Table and per-interval sums are commutative;
// unmatched records and conflicts are concatenated.
func (r *Result) Merge(other *Result) {
	r.Table.Merge(other.Table)
	r.Unmatched = append(r.Unmatched, other.Unmatched...)
	r.Conflicts = append(r.Conflicts, other.Conflicts...)
	for iv, t := range other.PerInterval {
		cur := r.PerInterval[iv]
		cur.Silent += t.Silent
		cur.Missense += t.Missense
		r.PerInterval[iv] = cur
	}
}

// Summary returns the count totals of r. Validation counters are left at
// zero; they belong to the files the records came from.
func (r *Result) Summary() RunSummary {
	return RunSummary{
		Counted:   r.Table.Total(),
		Unmatched: len(r.Unmatched),
		Conflicts: len(r.Conflicts),
	}
}

// Counter assigns records to intervals. It only reads the index and is safe
// for concurrent use.
type Counter struct {
	index  *interval.Index
	logger *zap.Logger
}

// NewCounter creates a counter over a built interval index.
func NewCounter(index *interval.Index) *Counter {
	return &Counter{index: index, logger: zap.NewNop()}
}

// SetLogger sets the logger for consistency errors.
func (c *Counter) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Count tallies records into a fresh Result. Records outside every interval
// go to Unmatched; records in several intervals are reported as conflicts and
// not counted.
func (c *Counter) Count(records []mutation.Record) *Result {
	res := NewResult()
	for _, rec := range records {
		hits := c.index.Find(rec.Chrom, rec.Pos0())
		switch len(hits) {
		case 0:
			res.Unmatched = append(res.Unmatched, rec)
		case 1:
			iv := hits[0]
			res.Table.Inc(Key{
				GeneID:   iv.GeneID,
				Category: iv.Category,
				Class:    rec.Class,
				SampleID: rec.SampleID,
			})
			t := res.PerInterval[iv]
			switch rec.Class {
			case mutation.Silent:
				t.Silent++
			case mutation.Missense:
				t.Missense++
			}
			res.PerInterval[iv] = t
		default:
			conflict := &IntervalConsistencyError{Record: rec, Matches: hits}
			c.logger.Error("mutation matches multiple intervals",
				zap.String("file", rec.SourceFile),
				zap.String("chrom", rec.Chrom),
				zap.Int64("pos", rec.Position),
				zap.Int("matches", len(hits)),
				zap.Error(conflict))
			res.Conflicts = append(res.Conflicts, conflict)
		}
	}
	return res
}

// Count is a convenience wrapper for a one-shot count without logging.
func Count(records []mutation.Record, index *interval.Index) *Result {
	return NewCounter(index).Count(records)
}
