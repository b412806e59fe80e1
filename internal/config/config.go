// Package config is for run wide settings that are unmarshalled
// from Viper (see: cmd/syncount)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Viper keys.
const (
	KeyCCDS         = "reference.ccds"
	KeyConstraint   = "reference.constraint"
	KeyAcceleration = "reference.acceleration"
	KeyGenome       = "reference.genome"
	KeyChroms       = "reference.chroms"
	KeyReferenceDir = "reference.dir"

	KeyMutationDir = "mutations.dir"
	KeyManifest    = "mutations.manifest"
	KeyStrategy    = "mutations.strategy"

	KeyOutputDir = "output.dir"
	KeyDuckDB    = "output.duckdb"
	KeyCacheDir  = "output.cache-dir"

	KeyWorkers = "workers"
	KeyVerbose = "verbose"
)

// Reference file names written by `syncount download`.
const (
	CCDSFileName   = "CCDS.current.txt"
	GenomeFileName = "hg38.fa.gz"
)

// ReferenceConfig locates the annotation and genome build inputs
type ReferenceConfig struct {
	// CCDS.current.txt
	CCDS string `mapstructure:"ccds"`

	// synonymous constraint elements (BED or UCSC CSV)
	Constraint string `mapstructure:"constraint"`

	// synonymous acceleration elements (BED or UCSC CSV)
	Acceleration string `mapstructure:"acceleration"`

	// genome build FASTA, plain or gzipped
	Genome string `mapstructure:"genome"`

	// contigs to load from the genome build; empty loads all
	Chroms []string `mapstructure:"chroms"`

	// where `syncount download` stores reference files
	Dir string `mapstructure:"dir"`
}

// MutationConfig locates the mutation corpus
type MutationConfig struct {
	// directory searched for *.maf and *.maf.gz
	Dir string `mapstructure:"dir"`

	// optional downloader manifest restricting the corpus
	Manifest string `mapstructure:"manifest"`

	// experimental strategy selected from the manifest
	Strategy string `mapstructure:"strategy"`
}

// OutputConfig is where results go
type OutputConfig struct {
	Dir string `mapstructure:"dir"`

	// optional DuckDB database receiving every artifact of the run
	DuckDB string `mapstructure:"duckdb"`

	// optional directory caching built intervals between runs
	CacheDir string `mapstructure:"cache-dir"`
}

// Config is the root-level settings struct and is a mix
// of settings available in ~/.syncount.yaml, SYNCOUNT_ environment
// variables, and the command line
type Config struct {
	Reference ReferenceConfig `mapstructure:"reference"`
	Mutations MutationConfig  `mapstructure:"mutations"`
	Output    OutputConfig    `mapstructure:"output"`

	// number of mutation files processed concurrently
	Workers int  `mapstructure:"workers"`
	Verbose bool `mapstructure:"verbose"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStrategy, "WXS")
	v.SetDefault(KeyOutputDir, ".")
	v.SetDefault(KeyWorkers, runtime.NumCPU())
	if dir := DefaultReferenceDir(); dir != "" {
		v.SetDefault(KeyReferenceDir, dir)
	}
}

// DefaultReferenceDir returns ~/.syncount/grch38, or "" when there is no
// home directory.
func DefaultReferenceDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".syncount", "grch38")
}

// Load unmarshals the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	// A comma separated env var or flag arrives as a single element.
	var chroms []string
	for _, entry := range c.Reference.Chroms {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				chroms = append(chroms, part)
			}
		}
	}
	c.Reference.Chroms = chroms

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	c.Reference.fillFromDir()
	return c, nil
}

// fillFromDir points unset CCDS and genome paths at downloaded copies in
// the reference directory.
func (r *ReferenceConfig) fillFromDir() {
	if r.Dir == "" {
		return
	}
	for _, f := range []struct {
		path *string
		name string
	}{
		{&r.CCDS, CCDSFileName},
		{&r.Genome, GenomeFileName},
	} {
		if *f.path != "" {
			continue
		}
		candidate := filepath.Join(r.Dir, f.name)
		if _, err := os.Stat(candidate); err == nil {
			*f.path = candidate
		}
	}
}

// Keys lists every setting in key order.
var Keys = []string{
	KeyCCDS, KeyConstraint, KeyAcceleration, KeyGenome, KeyChroms, KeyReferenceDir,
	KeyMutationDir, KeyManifest, KeyStrategy,
	KeyOutputDir, KeyDuckDB, KeyCacheDir,
	KeyWorkers, KeyVerbose,
}

// IsKey reports whether key names a setting.
func IsKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// ParseValue converts the text form of a setting to the type Load expects,
// so a value written to the config file decodes back into Config.
func ParseValue(key, value string) (any, error) {
	if !IsKey(key) {
		return nil, fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	switch key {
	case KeyWorkers:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
		}
		return n, nil
	case KeyVerbose:
		switch strings.ToLower(value) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%s must be a boolean, got %q", key, value)
	case KeyChroms:
		var chroms []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				chroms = append(chroms, part)
			}
		}
		return chroms, nil
	}
	return value, nil
}

// RequireIntervalInputs checks the settings needed to build intervals.
func (c Config) RequireIntervalInputs() error {
	return require(map[string]string{
		KeyCCDS:         c.Reference.CCDS,
		KeyConstraint:   c.Reference.Constraint,
		KeyAcceleration: c.Reference.Acceleration,
	})
}

// RequireValidationInputs checks the settings needed to validate mutations.
func (c Config) RequireValidationInputs() error {
	if err := require(map[string]string{KeyGenome: c.Reference.Genome}); err != nil {
		return err
	}
	if c.Mutations.Dir == "" && c.Mutations.Manifest == "" {
		return fmt.Errorf("one of %s or %s must be set", KeyMutationDir, KeyManifest)
	}
	return nil
}

func require(values map[string]string) error {
	var missing []string
	for key, val := range values {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required setting(s): %s", strings.Join(missing, ", "))
}
