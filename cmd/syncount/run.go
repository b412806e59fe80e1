package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/count"
	"github.com/syncount/syncount/internal/interval"
	"github.com/syncount/syncount/internal/output"
)

func newRunCmd() *cobra.Command {
	keys := map[string]string{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build intervals, validate mutations, and count them in one pass",
		Long: `Run the whole pipeline: build region-category intervals, validate every
mutation file against the genome build, and count validated mutations per
(gene, region_category, variant_class, sample_id).

Files are processed in parallel (--workers); the counts do not depend on the
number of workers or on file order. Writes intervals.tsv,
validated_mutations.tsv, counts.tsv, interval_counts.tsv, unmatched.tsv and
diagnostics.tsv to --out, and records the run in --duckdb when given.`,
		Example: `  syncount run --ccds CCDS.current.txt --constraint sce.bed --acceleration sae.bed \
    --genome hg38.fa.gz --maf-dir gdc/ --out results/
  syncount run --config study.yaml --duckdb results/syncount.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context())
		},
	}
	addTrackFlags(cmd, keys)
	addGenomeFlags(cmd, keys)
	addMutationFlags(cmd, keys)
	bindOnRun(cmd, keys)
	return cmd
}

func runPipeline(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.RequireIntervalInputs(); err != nil {
		return &usageError{err}
	}
	if err := cfg.RequireValidationInputs(); err != nil {
		return &usageError{err}
	}

	ref, err := loadGenome(cfg, logger)
	if err != nil {
		return err
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

	counter := count.NewCounter(interval.NewIndex(ivs))
	out, err := validateCorpus(ctx, cfg, ref, counter, logger)
	if err != nil {
		return err
	}

	if err := writeValidated(cfg, out, logger); err != nil {
		return err
	}
	if err := writeCounts(cfg, ivs, out.Result, logger); err != nil {
		return err
	}

	store, run, err := openStore(cfg, "run", logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		inputs, err := intervalInputs(cfg, true)
		if err != nil {
			return err
		}
		if err := store.RecordInputs(run.ID, inputs); err != nil {
			return err
		}
		if err := store.WriteIntervals(run.ID, ivs); err != nil {
			return fmt.Errorf("store intervals: %w", err)
		}
		if err := store.WriteMutations(run.ID, out.Records); err != nil {
			return fmt.Errorf("store mutations: %w", err)
		}
		if err := storeCounts(store, run.ID, out.Result); err != nil {
			return err
		}
		if err := store.WriteDiagnostics(run.ID, out.Reports); err != nil {
			return fmt.Errorf("store diagnostics: %w", err)
		}
		if err := store.FinishRun(run.ID, out.Summary); err != nil {
			return err
		}
	}

	out.Summary.Log(logger)
	if err := output.WriteBuildSummary(os.Stderr, stats); err != nil {
		return err
	}
	return output.WriteRunSummary(os.Stderr, out.Summary)
}
