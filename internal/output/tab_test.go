package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncount/syncount/internal/count"
	"github.com/syncount/syncount/internal/interval"
	"github.com/syncount/syncount/internal/mutation"
)

func TestCountWriter(t *testing.T) {
	tbl := count.NewTable()
	tbl.Inc(count.Key{GeneID: "TP53", Category: interval.BackgroundCDS, Class: mutation.Missense, SampleID: "S2"})
	tbl.Inc(count.Key{GeneID: "KRAS", Category: interval.ConstraintCDS, Class: mutation.Silent, SampleID: "S1"})
	tbl.Inc(count.Key{GeneID: "KRAS", Category: interval.ConstraintCDS, Class: mutation.Silent, SampleID: "S1"})

	var buf bytes.Buffer
	w := NewCountWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(tbl))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "gene\tregion_category\tvariant_class\tsample_id\tcount", lines[0])
	assert.Equal(t, "KRAS\tCONSTRAINT_CDS\tSILENT\tS1\t2", lines[1])
	assert.Equal(t, "TP53\tBACKGROUND_CDS\tMISSENSE\tS2\t1", lines[2])
}

func TestIntervalCountWriter(t *testing.T) {
	ivs := []interval.GenomicInterval{
		{Chrom: "chr1", Start: 1000, End: 1200, GeneID: "G", Category: interval.BackgroundCDS},
		{Chrom: "chr1", Start: 1200, End: 1400, GeneID: "G", Category: interval.ConstraintCDS},
	}
	tallies := map[interval.GenomicInterval]count.Tally{
		ivs[1]: {Silent: 3, Missense: 1},
	}

	var buf bytes.Buffer
	w := NewIntervalCountWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(ivs, tallies))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "chrom\tstart\tend\tgene\tregion_category\tsilent_count\tmissense_count", lines[0])
	assert.Equal(t, "chr1\t1000\t1200\tG\tBACKGROUND_CDS\t0\t0", lines[1], "untouched interval has zero counts")
	assert.Equal(t, "chr1\t1200\t1400\tG\tCONSTRAINT_CDS\t3\t1", lines[2])
}

func TestIntervalCountColumns_DoesNotAliasHeader(t *testing.T) {
	assert.Len(t, interval.TSVHeader, 5)
	assert.Len(t, IntervalCountColumns, 7)
}

func TestDiagnosticsWriter(t *testing.T) {
	reports := []count.FileReport{
		{
			Path:        "a.maf",
			Diagnostics: mutation.Diagnostics{Accepted: 10, AlleleMismatch: 2, ClassFiltered: 5, Malformed: 1},
			Unmatched:   3,
		},
		{Path: "b.maf", Err: errors.New("open maf file:\tno such file")},
	}

	var buf bytes.Buffer
	w := NewDiagnosticsWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(reports))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a.maf\t10\t2\t5\t1\t0\t3\t0\t-", lines[1])

	fields := strings.Split(lines[2], "\t")
	require.Len(t, fields, len(DiagnosticsColumns), "tabs in error text are escaped")
	assert.Equal(t, "open maf file: no such file", fields[8])
}

func TestWriteUnmatched(t *testing.T) {
	records := []mutation.Record{
		{Chrom: "chr1", Position: 5000, Ref: "C", Alt: "T", Class: mutation.Missense, SampleID: "S1", SourceFile: "s1.maf", GeneSymbol: "G"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteUnmatched(&buf, records))

	got, err := mutation.ReadTSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestWriteRunSummary(t *testing.T) {
	s := count.RunSummary{
		Files:       3,
		FilesOK:     2,
		FilesFailed: 1,
		Diagnostics: mutation.Diagnostics{Accepted: 3, AlleleMismatch: 1},
		Counted:     2,
		Unmatched:   1,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRunSummary(&buf, s))

	out := buf.String()
	assert.Contains(t, out, "Run Summary:")
	assert.Contains(t, out, "75.0%")
	assert.NotContains(t, out, "Files missing")
	assert.Regexp(t, `Unmatched:\s+1`, out)
}

func TestWriteBuildSummary(t *testing.T) {
	s := interval.BuildStats{
		Exons: 4,
		Genes: 1,
		Intervals: map[interval.Category]int{
			interval.BackgroundCDS: 2,
			interval.ConstraintCDS: 1,
		},
		Bases: map[interval.Category]int64{
			interval.BackgroundCDS: 800,
			interval.ConstraintCDS: 200,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBuildSummary(&buf, s))

	out := buf.String()
	assert.Regexp(t, `CONSTRAINT_CDS:\s+1 intervals\s+200 bp\s+\(20\.0%\)`, out)
	assert.Regexp(t, `ACCELERATION_CDS:\s+0 intervals\s+0 bp`, out)
}
