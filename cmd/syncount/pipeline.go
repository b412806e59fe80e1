package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/config"
	"github.com/syncount/syncount/internal/count"
	"github.com/syncount/syncount/internal/duckdb"
	"github.com/syncount/syncount/internal/genome"
	"github.com/syncount/syncount/internal/interval"
	"github.com/syncount/syncount/internal/track"
)

// Output file names.
const (
	intervalsFile      = "intervals.tsv"
	validatedFile      = "validated_mutations.tsv"
	countsFile         = "counts.tsv"
	intervalCountsFile = "interval_counts.tsv"
	unmatchedFile      = "unmatched.tsv"
	diagnosticsFile    = "diagnostics.tsv"
)

// loadGenome loads the genome build, limited to the configured contigs.
func loadGenome(cfg config.Config, logger *zap.Logger) (*genome.Index, error) {
	loader := genome.NewFASTALoader(cfg.Reference.Genome, cfg.Reference.Chroms...)
	if err := loader.Load(); err != nil {
		return nil, fmt.Errorf("load genome build: %w", err)
	}
	if loader.SequenceCount() == 0 {
		return nil, fmt.Errorf("genome build %s: no contigs loaded", cfg.Reference.Genome)
	}
	logger.Info("loaded genome build",
		zap.String("path", cfg.Reference.Genome),
		zap.Int("contigs", loader.SequenceCount()))
	return genome.NewIndex(loader.Sequences(), nil), nil
}

// buildIntervals parses the annotation tracks and builds the interval set.
// ref may be nil, in which case exons are not checked against the build.
func buildIntervals(cfg config.Config, ref interval.ChromSet, logger *zap.Logger) ([]interval.GenomicInterval, interval.BuildStats, error) {
	ccds := track.NewCCDSLoader(cfg.Reference.CCDS)
	ccds.SetLogger(logger)
	exons, ccdsStats, err := ccds.Load()
	if err != nil {
		return nil, interval.BuildStats{}, err
	}
	logger.Info("loaded CCDS",
		zap.Int("rows", ccdsStats.Rows),
		zap.Int("kept", ccdsStats.Kept),
		zap.Int("filtered", ccdsStats.Filtered),
		zap.Int("malformed", ccdsStats.Malformed),
		zap.Int("exons", ccdsStats.Exons))

	constraint, err := loadElements(cfg.Reference.Constraint, track.Constraint, logger)
	if err != nil {
		return nil, interval.BuildStats{}, err
	}
	acceleration, err := loadElements(cfg.Reference.Acceleration, track.Acceleration, logger)
	if err != nil {
		return nil, interval.BuildStats{}, err
	}

	b := interval.NewBuilder(ref)
	b.SetLogger(logger)
	ivs, stats := b.Build(exons, constraint, acceleration)
	if len(ivs) == 0 {
		return nil, stats, fmt.Errorf("no intervals built from %s", cfg.Reference.CCDS)
	}
	return ivs, stats, nil
}

func loadElements(path string, kind track.ElementKind, logger *zap.Logger) ([]track.AnnotatedElement, error) {
	l := track.NewElementLoader(path, kind)
	l.SetLogger(logger)
	elements, stats, err := l.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("loaded elements",
		zap.Stringer("kind", kind),
		zap.String("path", path),
		zap.Int("rows", stats.Rows),
		zap.Int("elements", stats.Elements),
		zap.Int("malformed", stats.Malformed))
	return elements, nil
}

// intervalInputs returns the fingerprints of the files an interval build
// depends on.
func intervalInputs(cfg config.Config, withGenome bool) (map[string]duckdb.FileFingerprint, error) {
	paths := map[string]string{
		"ccds":         cfg.Reference.CCDS,
		"constraint":   cfg.Reference.Constraint,
		"acceleration": cfg.Reference.Acceleration,
	}
	if withGenome {
		paths["genome"] = cfg.Reference.Genome
	}
	return duckdb.StatInputs(paths)
}

// intervalSettings returns the settings besides the input files that change
// an interval build. The contig filter decides which exons the genome check
// rejects, so it only matters when a genome is loaded.
func intervalSettings(cfg config.Config, withGenome bool) map[string]string {
	if !withGenome {
		return nil
	}
	chroms := make([]string, 0, len(cfg.Reference.Chroms))
	seen := make(map[string]bool, len(cfg.Reference.Chroms))
	for _, c := range cfg.Reference.Chroms {
		c = genome.NormalizeChrom(c)
		if !seen[c] {
			seen[c] = true
			chroms = append(chroms, c)
		}
	}
	sort.Strings(chroms)
	return map[string]string{"chroms": strings.Join(chroms, ",")}
}

// cachedIntervals builds intervals, reusing the interval cache when its
// sources and settings are unchanged.
func cachedIntervals(cfg config.Config, ref interval.ChromSet, logger *zap.Logger) ([]interval.GenomicInterval, interval.BuildStats, error) {
	if cfg.Output.CacheDir == "" {
		return buildIntervals(cfg, ref, logger)
	}

	inputs, err := intervalInputs(cfg, ref != nil)
	if err != nil {
		return nil, interval.BuildStats{}, err
	}
	settings := intervalSettings(cfg, ref != nil)
	ic := duckdb.NewIntervalCache(cfg.Output.CacheDir)
	if ic.Valid(inputs, settings) {
		ivs, stats, err := ic.Load()
		if err == nil {
			logger.Info("using cached intervals", zap.String("dir", cfg.Output.CacheDir), zap.Int("intervals", len(ivs)))
			return ivs, stats, nil
		}
		logger.Warn("interval cache unreadable, rebuilding", zap.Error(err))
	}

	ivs, stats, err := buildIntervals(cfg, ref, logger)
	if err != nil {
		return nil, stats, err
	}
	if err := ic.Write(ivs, stats, inputs, settings); err != nil {
		logger.Warn("could not write interval cache", zap.Error(err))
	}
	return ivs, stats, nil
}

// selectFiles resolves the mutation corpus from the manifest or directory.
// It returns the number of manifest entries missing on disk.
func selectFiles(cfg config.Config, logger *zap.Logger) ([]string, int, error) {
	if cfg.Mutations.Manifest != "" {
		sel, err := count.LoadManifest(cfg.Mutations.Manifest, cfg.Mutations.Strategy)
		if err != nil {
			return nil, 0, err
		}
		logger.Info("loaded manifest",
			zap.String("path", cfg.Mutations.Manifest),
			zap.String("strategy", cfg.Mutations.Strategy),
			zap.Int("listed", sel.Listed),
			zap.Int("selected", len(sel.Files)),
			zap.Int("skipped", sel.Skipped),
			zap.Int("missing", sel.Missing))
		return sel.Files, sel.Missing, nil
	}

	files, err := count.DiscoverFiles(cfg.Mutations.Dir)
	if err != nil {
		return nil, 0, err
	}
	logger.Info("discovered mutation files", zap.String("dir", cfg.Mutations.Dir), zap.Int("files", len(files)))
	return files, 0, nil
}

// writeFile creates path and hands a buffered writer to fn.
func writeFile(path string, fn func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// readFile opens path for a reader function.
func readFile[T any](path string, fn func(f *os.File) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return fn(f)
}

// openStore opens the configured DuckDB database and registers a run, or
// returns nil when no database is configured.
func openStore(cfg config.Config, command string, logger *zap.Logger) (*duckdb.Store, duckdb.Run, error) {
	if cfg.Output.DuckDB == "" {
		return nil, duckdb.Run{}, nil
	}
	store, err := duckdb.Open(cfg.Output.DuckDB)
	if err != nil {
		return nil, duckdb.Run{}, err
	}
	run, err := store.BeginRun(command)
	if err != nil {
		store.Close()
		return nil, duckdb.Run{}, err
	}
	logger.Info("recording run", zap.String("duckdb", cfg.Output.DuckDB), zap.String("run_id", run.ID))
	return store, run, nil
}
