package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncount/syncount/internal/duckdb"
)

const (
	testCCDS = "#chromosome\tnc_accession\tgene\tgene_id\tccds_id\tccds_status\tcds_strand\tcds_from\tcds_to\tcds_locations\tmatch_type\n" +
		"1\tNC_000001.11\tGENE1\t1\tCCDS1.1\tPublic\t+\t99\t1098\t[99-1098]\tIdentical\n"

	testMAFHeader = "Hugo_Symbol\tChromosome\tStart_Position\tVariant_Classification\tVariant_Type\tReference_Allele\tTumor_Seq_Allele1\tTumor_Seq_Allele2\tTumor_Sample_Barcode\n"
)

// writeFixtures lays out a one-gene study: GENE1 covers chr1 [99,1099),
// constraint covers [199,299) and acceleration [499,599). Every base of
// chr1 is C.
func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"CCDS.current.txt": testCCDS,
		"sce.bed":          "chr1\t199\t299\tsce1\n",
		"sae.bed":          "chr1\t499\t599\tsae1\n",
		"genome.fa":        ">chr1\n" + strings.Repeat("C", 2000) + "\n",
		"config.yaml":      "verbose: false\n",
		"maf/s1.maf": testMAFHeader +
			"GENE1\t1\t250\tSilent\tSNP\tC\tC\tT\tS1\n" +
			"GENE1\t1\t550\tMissense_Mutation\tSNP\tC\tC\tA\tS1\n" +
			"GENE1\t1\t1500\tSilent\tSNP\tC\tC\tT\tS1\n" +
			"GENE1\t1\t120\tSilent\tSNP\tG\tG\tT\tS1\n" +
			"GENE1\t1\t130\tNonsense_Mutation\tSNP\tC\tC\tA\tS1\n",
		"maf/s2.maf": testMAFHeader +
			"GENE1\t1\t251\tSilent\tSNP\tC\tC\tG\tS2\n" +
			"GENE1\t1\t700\tSilent\tSNP\tC\tC\tG\tS2\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func pipelineArgs(dir, out string) []string {
	return []string{
		"run",
		"--config", filepath.Join(dir, "config.yaml"),
		"--ccds", filepath.Join(dir, "CCDS.current.txt"),
		"--constraint", filepath.Join(dir, "sce.bed"),
		"--acceleration", filepath.Join(dir, "sae.bed"),
		"--genome", filepath.Join(dir, "genome.fa"),
		"--maf-dir", filepath.Join(dir, "maf"),
		"--out", out,
	}
}

func TestRunPipeline(t *testing.T) {
	dir := writeFixtures(t)
	out := filepath.Join(dir, "results")

	require.NoError(t, execute(t, append(pipelineArgs(dir, out), "--workers", "2")...))

	assert.Equal(t, []string{
		"chrom\tstart\tend\tgene\tregion_category",
		"chr1\t99\t199\tGENE1\tBACKGROUND_CDS",
		"chr1\t199\t299\tGENE1\tCONSTRAINT_CDS",
		"chr1\t299\t499\tGENE1\tBACKGROUND_CDS",
		"chr1\t499\t599\tGENE1\tACCELERATION_CDS",
		"chr1\t599\t1099\tGENE1\tBACKGROUND_CDS",
	}, readLines(t, filepath.Join(out, intervalsFile)))

	assert.Equal(t, []string{
		"gene\tregion_category\tvariant_class\tsample_id\tcount",
		"GENE1\tBACKGROUND_CDS\tSILENT\tS2\t1",
		"GENE1\tCONSTRAINT_CDS\tSILENT\tS1\t1",
		"GENE1\tCONSTRAINT_CDS\tSILENT\tS2\t1",
		"GENE1\tACCELERATION_CDS\tMISSENSE\tS1\t1",
	}, readLines(t, filepath.Join(out, countsFile)))

	unmatched := readLines(t, filepath.Join(out, unmatchedFile))
	require.Len(t, unmatched, 2)
	assert.Contains(t, unmatched[1], "\t1500\t")

	diags := readLines(t, filepath.Join(out, diagnosticsFile))
	require.Len(t, diags, 3)
	assert.True(t, strings.HasSuffix(diags[1], "\t3\t1\t1\t0\t0\t1\t0\t-"), diags[1])
	assert.True(t, strings.HasSuffix(diags[2], "\t2\t0\t0\t0\t0\t0\t0\t-"), diags[2])

	assert.Len(t, readLines(t, filepath.Join(out, validatedFile)), 6)
	assert.Len(t, readLines(t, filepath.Join(out, intervalCountsFile)), 6)
}

func TestCountMatchesRun(t *testing.T) {
	dir := writeFixtures(t)
	out := filepath.Join(dir, "results")
	require.NoError(t, execute(t, pipelineArgs(dir, out)...))

	recount := filepath.Join(dir, "recount")
	require.NoError(t, execute(t, "count",
		"--config", filepath.Join(dir, "config.yaml"),
		"--intervals", filepath.Join(out, intervalsFile),
		"--mutations", filepath.Join(out, validatedFile),
		"--out", recount))

	for _, name := range []string{countsFile, intervalCountsFile, unmatchedFile} {
		assert.Equal(t, readLines(t, filepath.Join(out, name)), readLines(t, filepath.Join(recount, name)), name)
	}
}

func TestRunPipeline_DuckDB(t *testing.T) {
	dir := writeFixtures(t)
	out := filepath.Join(dir, "results")
	db := filepath.Join(dir, "runs.duckdb")
	require.NoError(t, execute(t, append(pipelineArgs(dir, out), "--duckdb", db)...))

	store, err := duckdb.Open(db)
	require.NoError(t, err)
	defer store.Close()

	run, err := store.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "run", run.Command)

	sum, err := store.RunSummary(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, int64(4), sum.Counted)
	assert.Equal(t, 1, sum.Unmatched)

	n, err := store.TableRows(run.ID, "intervals")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestRun_MissingInputsIsUsageError(t *testing.T) {
	dir := writeFixtures(t)
	err := execute(t, "run",
		"--config", filepath.Join(dir, "config.yaml"),
		"--ccds", "",
		"--constraint", filepath.Join(dir, "sce.bed"),
		"--acceleration", filepath.Join(dir, "sae.bed"),
		"--genome", filepath.Join(dir, "genome.fa"),
		"--maf-dir", filepath.Join(dir, "maf"),
		"--out", dir)
	require.Error(t, err)

	var ue *usageError
	assert.ErrorAs(t, err, &ue)
}

func TestIntervals_CacheHonorsChroms(t *testing.T) {
	dir := writeFixtures(t)
	ccds := testCCDS + "2\tNC_000002.12\tGENE2\t2\tCCDS2.1\tPublic\t+\t99\t498\t[99-498]\tIdentical\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CCDS.current.txt"), []byte(ccds), 0o644))
	genome := ">chr1\n" + strings.Repeat("C", 2000) + "\n>chr2\n" + strings.Repeat("C", 2000) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "genome.fa"), []byte(genome), 0o644))

	build := func(out string, extra ...string) []string {
		args := append([]string{"intervals",
			"--config", filepath.Join(dir, "config.yaml"),
			"--ccds", filepath.Join(dir, "CCDS.current.txt"),
			"--constraint", filepath.Join(dir, "sce.bed"),
			"--acceleration", filepath.Join(dir, "sae.bed"),
			"--genome", filepath.Join(dir, "genome.fa"),
			"--cache-dir", filepath.Join(dir, "cache"),
			"--out", filepath.Join(dir, out),
		}, extra...)
		require.NoError(t, execute(t, args...))
		return readLines(t, filepath.Join(dir, out, intervalsFile))
	}

	chr1Only := build("chr1", "--chroms", "chr1")
	assert.Len(t, chr1Only, 6)
	assert.NotContains(t, strings.Join(chr1Only, "\n"), "GENE2")

	full := build("full")
	require.Len(t, full, 7, "full build must not reuse the contig-limited cache")
	assert.Contains(t, full, "chr2\t99\t499\tGENE2\tBACKGROUND_CDS")

	again := build("again")
	assert.Equal(t, full, again, "cache reused for the same settings")

	// Contig names are normalized before filtering.
	assert.Equal(t, chr1Only, build("bare", "--chroms", "1"))
}

func TestCountAndIntervals_FinishRuns(t *testing.T) {
	dir := writeFixtures(t)
	out := filepath.Join(dir, "results")
	db := filepath.Join(dir, "runs.duckdb")
	require.NoError(t, execute(t, pipelineArgs(dir, out)...))

	require.NoError(t, execute(t, "intervals",
		"--config", filepath.Join(dir, "config.yaml"),
		"--ccds", filepath.Join(dir, "CCDS.current.txt"),
		"--constraint", filepath.Join(dir, "sce.bed"),
		"--acceleration", filepath.Join(dir, "sae.bed"),
		"--out", out,
		"--duckdb", db))
	require.NoError(t, execute(t, "count",
		"--config", filepath.Join(dir, "config.yaml"),
		"--intervals", filepath.Join(out, intervalsFile),
		"--mutations", filepath.Join(out, validatedFile),
		"--out", out,
		"--duckdb", db))

	store, err := duckdb.Open(db)
	require.NoError(t, err)
	defer store.Close()

	var unfinished int
	require.NoError(t, store.DB().QueryRow(`SELECT count(*) FROM runs WHERE finished_at IS NULL`).Scan(&unfinished))
	assert.Zero(t, unfinished)

	var countRun string
	require.NoError(t, store.DB().QueryRow(`SELECT run_id FROM runs WHERE command = 'count'`).Scan(&countRun))
	sum, err := store.RunSummary(countRun)
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.Counted)
	assert.Equal(t, 1, sum.Unmatched)
	assert.Zero(t, sum.Conflicts)
}

func TestConfigSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "syncount.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reference:\n  ccds: /ref/CCDS.current.txt\n"), 0o644))

	require.NoError(t, execute(t, "config", "set", "workers", "4", "--config", path))
	require.NoError(t, execute(t, "config", "set", "reference.chroms", "chr1,chr2", "--config", path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, 4, v.GetInt("workers"))
	assert.Equal(t, []string{"chr1", "chr2"}, v.GetStringSlice("reference.chroms"))
	assert.Equal(t, "/ref/CCDS.current.txt", v.GetString("reference.ccds"), "existing settings kept")
	assert.False(t, v.IsSet("output.dir"), "defaults are not written")

	var ue *usageError
	assert.ErrorAs(t, execute(t, "config", "set", "workers", "many", "--config", path), &ue)
	assert.ErrorAs(t, execute(t, "config", "set", "annotations.oncokb", "true", "--config", path), &ue)
	assert.ErrorAs(t, execute(t, "config", "get", "annotations.oncokb", "--config", path), &ue)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "3.0 GB", formatSize(3<<30))
}
