package count

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncount/syncount/internal/genome"
	"github.com/syncount/syncount/internal/interval"
	"github.com/syncount/syncount/internal/mutation"
)

// testIntervals models gene G with footprint [1000,2000) on chr1 and a
// constraint element at [1200,1400).
func testIntervals() []interval.GenomicInterval {
	return []interval.GenomicInterval{
		{Chrom: "chr1", Start: 1000, End: 1200, GeneID: "G", Category: interval.BackgroundCDS},
		{Chrom: "chr1", Start: 1200, End: 1400, GeneID: "G", Category: interval.ConstraintCDS},
		{Chrom: "chr1", Start: 1400, End: 2000, GeneID: "G", Category: interval.BackgroundCDS},
		{Chrom: "chr2", Start: 100, End: 300, GeneID: "H", Category: interval.AccelerationCDS},
	}
}

func rec(chrom string, pos int64, class mutation.VariantClass, sample string) mutation.Record {
	return mutation.Record{Chrom: chrom, Position: pos, Ref: "C", Alt: "T", Class: class, SampleID: sample, SourceFile: sample + ".maf"}
}

func TestCount_ConstraintHit(t *testing.T) {
	idx := interval.NewIndex(testIntervals())
	res := Count([]mutation.Record{rec("chr1", 1300, mutation.Silent, "S1")}, idx)

	assert.Equal(t, int64(1), res.Table.Get(Key{GeneID: "G", Category: interval.ConstraintCDS, Class: mutation.Silent, SampleID: "S1"}))
	assert.Equal(t, 1, res.Table.Len())
	assert.Empty(t, res.Unmatched)
	assert.Empty(t, res.Conflicts)
}

func TestCount_OutsideFootprintIsUnmatched(t *testing.T) {
	idx := interval.NewIndex(testIntervals())
	r := rec("chr1", 5000, mutation.Missense, "S1")
	res := Count([]mutation.Record{r}, idx)

	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, r, res.Unmatched[0])
	assert.Zero(t, res.Table.Len(), "no count rows for G")
	assert.Empty(t, res.PerInterval)
}

func TestCount_Boundaries(t *testing.T) {
	idx := interval.NewIndex(testIntervals())
	// 1-based 1000 is 0-based 999, before the footprint; 1001 is its first base.
	res := Count([]mutation.Record{
		rec("chr1", 1000, mutation.Silent, "S1"),
		rec("chr1", 1001, mutation.Silent, "S1"),
		rec("chr1", 1200, mutation.Silent, "S1"),
		rec("chr1", 1201, mutation.Silent, "S1"),
		rec("chr1", 2000, mutation.Silent, "S1"),
		rec("chr1", 2001, mutation.Silent, "S1"),
	}, idx)

	assert.Len(t, res.Unmatched, 2)
	assert.Equal(t, int64(3), res.Table.Get(Key{GeneID: "G", Category: interval.BackgroundCDS, Class: mutation.Silent, SampleID: "S1"}))
	assert.Equal(t, int64(1), res.Table.Get(Key{GeneID: "G", Category: interval.ConstraintCDS, Class: mutation.Silent, SampleID: "S1"}))
}

func TestCount_PerInterval(t *testing.T) {
	ivs := testIntervals()
	idx := interval.NewIndex(ivs)
	res := Count([]mutation.Record{
		rec("chr1", 1300, mutation.Silent, "S1"),
		rec("chr1", 1301, mutation.Missense, "S2"),
		rec("chr1", 1302, mutation.Missense, "S1"),
		rec("chr2", 150, mutation.Silent, "S1"),
	}, idx)

	assert.Equal(t, Tally{Silent: 1, Missense: 2}, res.PerInterval[ivs[1]])
	assert.Equal(t, Tally{Silent: 1}, res.PerInterval[ivs[3]])
	assert.Len(t, res.PerInterval, 2)
}

func TestCount_OverlappingIntervalsAreConflicts(t *testing.T) {
	ivs := append(testIntervals(), interval.GenomicInterval{
		Chrom: "chr1", Start: 1250, End: 1260, GeneID: "X", Category: interval.BackgroundCDS,
	})
	idx := interval.NewIndex(ivs)
	res := Count([]mutation.Record{rec("chr1", 1255, mutation.Silent, "S1")}, idx)

	require.Len(t, res.Conflicts, 1)
	assert.Len(t, res.Conflicts[0].Matches, 2)
	assert.Zero(t, res.Table.Total(), "conflicting record is not counted")
	assert.Empty(t, res.Unmatched)

	var target *IntervalConsistencyError
	assert.True(t, errors.As(res.Conflicts[0], &target))
	assert.Contains(t, res.Conflicts[0].Error(), "matches 2 intervals")
}

func TestCount_PartitionMergeEqualsWhole(t *testing.T) {
	idx := interval.NewIndex(testIntervals())
	records := []mutation.Record{
		rec("chr1", 1100, mutation.Silent, "S1"),
		rec("chr1", 1300, mutation.Missense, "S1"),
		rec("chr1", 1300, mutation.Missense, "S2"),
		rec("chr1", 1900, mutation.Silent, "S2"),
		rec("chr2", 200, mutation.Missense, "S3"),
		rec("chr3", 10, mutation.Silent, "S3"),
		rec("chr1", 1300, mutation.Missense, "S1"),
	}

	whole := Count(records, idx)

	for split := 0; split <= len(records); split++ {
		left := Count(records[:split], idx)
		right := Count(records[split:], idx)

		// Merge in both orders.
		ab := NewResult()
		ab.Merge(left)
		ab.Merge(right)
		ba := NewResult()
		ba.Merge(right)
		ba.Merge(left)

		assert.Equal(t, whole.Table.Entries(), ab.Table.Entries(), "split %d", split)
		assert.Equal(t, whole.Table.Entries(), ba.Table.Entries(), "split %d", split)
		assert.Equal(t, whole.PerInterval, ab.PerInterval, "split %d", split)
		assert.ElementsMatch(t, whole.Unmatched, ba.Unmatched, "split %d", split)
	}
}

func TestTable_Entries(t *testing.T) {
	tbl := NewTable()
	tbl.Inc(Key{GeneID: "B", Category: interval.BackgroundCDS, Class: mutation.Silent, SampleID: "S1"})
	tbl.Inc(Key{GeneID: "A", Category: interval.ConstraintCDS, Class: mutation.Missense, SampleID: "S2"})
	tbl.Inc(Key{GeneID: "A", Category: interval.ConstraintCDS, Class: mutation.Missense, SampleID: "S1"})
	tbl.Inc(Key{GeneID: "A", Category: interval.BackgroundCDS, Class: mutation.Silent, SampleID: "S1"})
	tbl.Inc(Key{GeneID: "A", Category: interval.BackgroundCDS, Class: mutation.Silent, SampleID: "S1"})

	entries := tbl.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, Entry{Key: Key{GeneID: "A", Category: interval.BackgroundCDS, Class: mutation.Silent, SampleID: "S1"}, Count: 2}, entries[0])
	assert.Equal(t, "S1", entries[1].SampleID)
	assert.Equal(t, "S2", entries[2].SampleID)
	assert.Equal(t, "B", entries[3].GeneID)
	assert.Equal(t, int64(5), tbl.Total())
}

const mafHeader = "Hugo_Symbol\tChromosome\tStart_Position\tVariant_Classification\tVariant_Type\tReference_Allele\tTumor_Seq_Allele1\tTumor_Seq_Allele2\tTumor_Sample_Barcode\n"

// writeCorpus writes one MAF per sample. chr1 is all C, so every ref C passes.
func writeCorpus(t *testing.T, dir string, samples map[string][]string) []string {
	t.Helper()
	var paths []string
	for sample, lines := range samples {
		path := filepath.Join(dir, sample+".maf")
		var b strings.Builder
		b.WriteString(mafHeader)
		for _, l := range lines {
			b.WriteString(l)
			b.WriteString("\n")
		}
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func mafLine(pos, class, ref, sample string) string {
	return strings.Join([]string{"G", "chr1", pos, class, "SNP", ref, ref, "T", sample}, "\t")
}

func testRunner(workers int) *Runner {
	ref := genome.NewIndex(map[string][]byte{"chr1": []byte(strings.Repeat("C", 6000))}, nil)
	return NewRunner(mutation.NewValidator(ref), NewCounter(interval.NewIndex(testIntervals())), workers)
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	files := writeCorpus(t, dir, map[string][]string{
		"S1": {
			mafLine("1300", "Silent", "C", "S1"),
			mafLine("1301", "Silent", "A", "S1"), // allele mismatch
			mafLine("5000", "Missense_Mutation", "C", "S1"),
		},
		"S2": {
			mafLine("1100", "Missense_Mutation", "C", "S2"),
			mafLine("1101", "Nonsense_Mutation", "C", "S2"),
			"broken",
		},
	})
	files = append(files, filepath.Join(dir, "missing.maf"))

	for _, workers := range []int{1, 4} {
		out, err := testRunner(workers).Run(context.Background(), files)
		require.NoError(t, err)

		assert.Equal(t, int64(1), out.Result.Table.Get(Key{GeneID: "G", Category: interval.ConstraintCDS, Class: mutation.Silent, SampleID: "S1"}))
		assert.Equal(t, int64(1), out.Result.Table.Get(Key{GeneID: "G", Category: interval.BackgroundCDS, Class: mutation.Missense, SampleID: "S2"}))
		require.Len(t, out.Result.Unmatched, 1)
		assert.Equal(t, int64(5000), out.Result.Unmatched[0].Position)

		require.Len(t, out.Reports, 3)
		assert.Equal(t, filepath.Join(dir, "S1.maf"), out.Reports[0].Path)
		assert.Equal(t, filepath.Join(dir, "S2.maf"), out.Reports[1].Path)
		assert.Equal(t, filepath.Join(dir, "missing.maf"), out.Reports[2].Path)
		assert.Error(t, out.Reports[2].Err)

		assert.Len(t, out.Records, 3)
		assert.Equal(t, "S1", out.Records[0].SampleID)
		assert.Equal(t, "S2", out.Records[2].SampleID)

		s := out.Summary
		assert.Equal(t, 3, s.Files)
		assert.Equal(t, 2, s.FilesOK)
		assert.Equal(t, 1, s.FilesFailed)
		assert.Equal(t, mutation.Diagnostics{Accepted: 3, AlleleMismatch: 1, ClassFiltered: 1, Malformed: 1}, s.Diagnostics)
		assert.Equal(t, int64(2), s.Counted)
		assert.Equal(t, 1, s.Unmatched)
	}
}

func TestRunner_Idempotent(t *testing.T) {
	dir := t.TempDir()
	files := writeCorpus(t, dir, map[string][]string{
		"S1": {mafLine("1300", "Silent", "C", "S1"), mafLine("1900", "Missense_Mutation", "C", "S1")},
		"S2": {mafLine("1300", "Silent", "C", "S2")},
	})

	r := testRunner(2)
	first, err := r.Run(context.Background(), files)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, first.Result.Table.Entries(), second.Result.Table.Entries())
	assert.Equal(t, first.Summary, second.Summary)
}

func TestRunner_Cancelled(t *testing.T) {
	dir := t.TempDir()
	files := writeCorpus(t, dir, map[string][]string{"S1": {mafLine("1300", "Silent", "C", "S1")}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := testRunner(1).Run(ctx, files)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, out)
	assert.Empty(t, out.Reports)
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Adenocarcinoma"), 0o755))
	for _, name := range []string{"b.maf", "a.maf.gz", "notes.txt", "Adenocarcinoma/c.maf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := DiscoverFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "Adenocarcinoma", "c.maf"),
		filepath.Join(dir, "a.maf.gz"),
		filepath.Join(dir, "b.maf"),
	}, files)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Lung"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Lung", "a.maf.gz"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Lung", "b.maf"), nil, 0o644))

	manifest := filepath.Join(dir, "maf_metadata.csv")
	content := "file_path,file_id,experimental_strategy,download_status\n" +
		"Lung/a.maf,id1,WXS,success\n" + // resolved to a.maf.gz
		"Lung/b.maf,id2,Targeted Sequencing,success\n" +
		"Lung/c.maf,id3,WXS,failed\n"
	require.NoError(t, os.WriteFile(manifest, []byte(content), 0o644))

	sel, err := LoadManifest(manifest, "WXS")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "Lung", "a.maf.gz")}, sel.Files)
	assert.Equal(t, 3, sel.Listed)
	assert.Equal(t, 1, sel.Skipped)
	assert.Equal(t, 1, sel.Missing)

	all, err := LoadManifest(manifest, "")
	require.NoError(t, err)
	assert.Len(t, all.Files, 2)
	assert.Equal(t, 1, all.Missing)
}

func TestLoadManifest_MissingColumn(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "m.csv")
	require.NoError(t, os.WriteFile(manifest, []byte("file_id\nx\n"), 0o644))
	_, err := LoadManifest(manifest, "WXS")
	assert.Error(t, err)
}

func TestRunner_ValidateOnly(t *testing.T) {
	dir := t.TempDir()
	files := writeCorpus(t, dir, map[string][]string{
		"S1": {mafLine("1300", "Silent", "C", "S1"), mafLine("5000", "Silent", "C", "S1")},
	})

	ref := genome.NewIndex(map[string][]byte{"chr1": []byte(strings.Repeat("C", 6000))}, nil)
	out, err := NewRunner(mutation.NewValidator(ref), nil, 1).Run(context.Background(), files)
	require.NoError(t, err)

	assert.Len(t, out.Records, 2)
	assert.Zero(t, out.Result.Table.Len())
	assert.Empty(t, out.Result.Unmatched)
	assert.Equal(t, int64(2), out.Summary.Diagnostics.Accepted)
}
