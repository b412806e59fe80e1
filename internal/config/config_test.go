package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".syncount.yaml")
	content := `reference:
  ccds: /ref/CCDS.current.txt
  constraint: /ref/sce.bed
  acceleration: /ref/sae.bed
  genome: /ref/hg38.fa.gz
  chroms: [chr1, chr2]
mutations:
  dir: /data/maf
  manifest: /data/maf/maf_metadata.csv
output:
  dir: /out
  duckdb: /out/runs.duckdb
  cache-dir: /cache
workers: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	c, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/ref/CCDS.current.txt", c.Reference.CCDS)
	assert.Equal(t, "/ref/sce.bed", c.Reference.Constraint)
	assert.Equal(t, "/ref/sae.bed", c.Reference.Acceleration)
	assert.Equal(t, "/ref/hg38.fa.gz", c.Reference.Genome)
	assert.Equal(t, []string{"chr1", "chr2"}, c.Reference.Chroms)
	assert.Equal(t, "/data/maf", c.Mutations.Dir)
	assert.Equal(t, "WXS", c.Mutations.Strategy, "default strategy")
	assert.Equal(t, "/out/runs.duckdb", c.Output.DuckDB)
	assert.Equal(t, "/cache", c.Output.CacheDir)
	assert.Equal(t, 3, c.Workers)

	assert.NoError(t, c.RequireIntervalInputs())
	assert.NoError(t, c.RequireValidationInputs())
}

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ".", c.Output.Dir)
	assert.Equal(t, runtime.NumCPU(), c.Workers)
	assert.Empty(t, c.Reference.Chroms)
}

func TestLoad_CommaSeparatedChroms(t *testing.T) {
	v := viper.New()
	v.Set(KeyChroms, []string{"chr1, chr2", "chrX"})

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1", "chr2", "chrX"}, c.Reference.Chroms)
}

func TestLoad_NonPositiveWorkers(t *testing.T) {
	v := viper.New()
	v.Set(KeyWorkers, 0)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), c.Workers)
}

func TestLoad_ReferenceDirFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CCDSFileName), []byte("#chromosome\n"), 0o644))

	v := viper.New()
	v.Set(KeyReferenceDir, dir)
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, CCDSFileName), c.Reference.CCDS)
	assert.Empty(t, c.Reference.Genome, "genome not downloaded")

	v.Set(KeyCCDS, "/explicit/CCDS.txt")
	c, err = Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/explicit/CCDS.txt", c.Reference.CCDS, "explicit path wins")
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		check   func(Config) error
		wantErr string
	}{
		{
			"interval inputs missing",
			Config{Reference: ReferenceConfig{Constraint: "sce.bed"}},
			Config.RequireIntervalInputs,
			"missing required setting(s): reference.acceleration, reference.ccds",
		},
		{
			"genome missing",
			Config{Mutations: MutationConfig{Dir: "maf"}},
			Config.RequireValidationInputs,
			"missing required setting(s): reference.genome",
		},
		{
			"no mutation source",
			Config{Reference: ReferenceConfig{Genome: "hg38.fa"}},
			Config.RequireValidationInputs,
			"one of mutations.dir or mutations.manifest must be set",
		},
		{
			"manifest only",
			Config{Reference: ReferenceConfig{Genome: "hg38.fa"}, Mutations: MutationConfig{Manifest: "m.csv"}},
			Config.RequireValidationInputs,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(tt.config)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		key, value string
		want       any
		wantErr    string
	}{
		{KeyWorkers, "8", 8, ""},
		{KeyWorkers, "eight", nil, "workers must be a non-negative integer"},
		{KeyWorkers, "-1", nil, "workers must be a non-negative integer"},
		{KeyVerbose, "yes", true, ""},
		{KeyVerbose, "OFF", false, ""},
		{KeyVerbose, "maybe", nil, "verbose must be a boolean"},
		{KeyChroms, "chr1, chr2,,", []string{"chr1", "chr2"}, ""},
		{KeyConstraint, "sce.bed", "sce.bed", ""},
		{"reference.gtf", "x", nil, `unknown setting "reference.gtf"`},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := ParseValue(tt.key, tt.value)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseValue_RoundTripsThroughLoad(t *testing.T) {
	v := viper.New()
	for key, text := range map[string]string{
		KeyWorkers: "5",
		KeyVerbose: "on",
		KeyChroms:  "chr1,chrX",
	} {
		val, err := ParseValue(key, text)
		require.NoError(t, err)
		v.Set(key, val)
	}

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Workers)
	assert.True(t, c.Verbose)
	assert.Equal(t, []string{"chr1", "chrX"}, c.Reference.Chroms)
}

func TestKeysAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Keys {
		assert.False(t, seen[k], k)
		seen[k] = true
		assert.True(t, IsKey(k))
	}
	assert.False(t, IsKey("annotations.alphamissense"))
}
