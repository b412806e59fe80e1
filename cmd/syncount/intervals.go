package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/count"
	"github.com/syncount/syncount/internal/interval"
	"github.com/syncount/syncount/internal/output"
)

func newIntervalsCmd() *cobra.Command {
	keys := map[string]string{}
	cmd := &cobra.Command{
		Use:   "intervals",
		Short: "Build region-category intervals from CCDS and element tracks",
		Long: `Merge each gene's CCDS exons into its coding footprint and split it into
CONSTRAINT_CDS, ACCELERATION_CDS and BACKGROUND_CDS intervals. A base covered
by both element kinds is assigned to CONSTRAINT_CDS. Writes intervals.tsv.

When --genome is given, exons on contigs absent from the build are rejected.`,
		Example: `  syncount intervals --ccds CCDS.current.txt --constraint sce.bed --acceleration sae.bed
  syncount intervals --ccds CCDS.current.txt --constraint sce.csv --acceleration sae.csv --genome hg38.fa.gz --out results/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntervals()
		},
	}
	addTrackFlags(cmd, keys)
	addGenomeFlags(cmd, keys)
	bindOnRun(cmd, keys)
	return cmd
}

func runIntervals() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.RequireIntervalInputs(); err != nil {
		return &usageError{err}
	}

	var ref interval.ChromSet
	if cfg.Reference.Genome != "" {
		idx, err := loadGenome(cfg, logger)
		if err != nil {
			return err
		}
		ref = idx
	}

	ivs, stats, err := cachedIntervals(cfg, ref, logger)
	if err != nil {
		return err
	}

	path, err := outputPath(cfg, intervalsFile)
	if err != nil {
		return err
	}
	if err := writeFile(path, func(w *bufio.Writer) error {
		return interval.WriteTSV(w, ivs)
	}); err != nil {
		return err
	}
	logger.Info("wrote intervals", zap.String("path", path), zap.Int("intervals", len(ivs)))

	store, run, err := openStore(cfg, "intervals", logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		inputs, err := intervalInputs(cfg, ref != nil)
		if err != nil {
			return err
		}
		if err := store.RecordInputs(run.ID, inputs); err != nil {
			return err
		}
		if err := store.WriteIntervals(run.ID, ivs); err != nil {
			return fmt.Errorf("store intervals: %w", err)
		}
		// An interval build has no mutation counters; this only stamps
		// finished_at.
		if err := store.FinishRun(run.ID, count.RunSummary{}); err != nil {
			return err
		}
	}

	return output.WriteBuildSummary(os.Stderr, stats)
}
