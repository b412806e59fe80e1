package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/config"
	"github.com/syncount/syncount/internal/count"
	"github.com/syncount/syncount/internal/duckdb"
	"github.com/syncount/syncount/internal/interval"
	"github.com/syncount/syncount/internal/mutation"
	"github.com/syncount/syncount/internal/output"
)

func newCountCmd() *cobra.Command {
	var intervalsPath, mutationsPath string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count validated mutations per gene, region category, class, and sample",
		Long: `Assign each validated mutation to the interval containing it and count by
(gene, region_category, variant_class, sample_id). Writes counts.tsv,
interval_counts.tsv, and unmatched.tsv. Mutations outside every interval are
never dropped: they are written to unmatched.tsv.`,
		Example: `  syncount count --intervals intervals.tsv --mutations validated_mutations.tsv
  syncount count --intervals intervals.tsv --mutations validated_mutations.tsv --out results/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(intervalsPath, mutationsPath)
		},
	}

	cmd.Flags().StringVar(&intervalsPath, "intervals", intervalsFile, "Interval file written by 'syncount intervals'")
	cmd.Flags().StringVar(&mutationsPath, "mutations", validatedFile, "Validated table written by 'syncount validate'")
	return cmd
}

func runCount(intervalsPath, mutationsPath string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ivs, err := readFile(intervalsPath, func(f *os.File) ([]interval.GenomicInterval, error) {
		return interval.ReadTSV(f)
	})
	if err != nil {
		return fmt.Errorf("read intervals: %w", err)
	}
	records, err := readFile(mutationsPath, func(f *os.File) ([]mutation.Record, error) {
		return mutation.ReadTSV(f)
	})
	if err != nil {
		return fmt.Errorf("read validated mutations: %w", err)
	}
	logger.Info("loaded inputs",
		zap.String("intervals", intervalsPath),
		zap.Int("interval_rows", len(ivs)),
		zap.String("mutations", mutationsPath),
		zap.Int("records", len(records)))

	counter := count.NewCounter(interval.NewIndex(ivs))
	counter.SetLogger(logger)
	res := counter.Count(records)

	if err := writeCounts(cfg, ivs, res, logger); err != nil {
		return err
	}

	store, run, err := openStore(cfg, "count", logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		if err := storeCounts(store, run.ID, res); err != nil {
			return err
		}
		if err := store.FinishRun(run.ID, res.Summary()); err != nil {
			return err
		}
	}

	logger.Info("count summary",
		zap.Int("records", len(records)),
		zap.Int64("counted", res.Table.Total()),
		zap.Int("unmatched", len(res.Unmatched)),
		zap.Int("conflicts", len(res.Conflicts)))
	fmt.Fprintf(os.Stderr, "Counted %d of %d mutations (%d unmatched, %d conflicts)\n",
		res.Table.Total(), len(records), len(res.Unmatched), len(res.Conflicts))
	return nil
}

// writeCounts writes the count table, per-interval tallies, and unmatched
// records.
func writeCounts(cfg config.Config, ivs []interval.GenomicInterval, res *count.Result, logger *zap.Logger) error {
	outputs := []struct {
		name  string
		write func(w io.Writer) error
	}{
		{countsFile, func(w io.Writer) error {
			cw := output.NewCountWriter(w)
			if err := cw.WriteHeader(); err != nil {
				return err
			}
			if err := cw.Write(res.Table); err != nil {
				return err
			}
			return cw.Flush()
		}},
		{intervalCountsFile, func(w io.Writer) error {
			iw := output.NewIntervalCountWriter(w)
			if err := iw.WriteHeader(); err != nil {
				return err
			}
			if err := iw.Write(ivs, res.PerInterval); err != nil {
				return err
			}
			return iw.Flush()
		}},
		{unmatchedFile, func(w io.Writer) error {
			return output.WriteUnmatched(w, res.Unmatched)
		}},
	}

	for _, o := range outputs {
		path, err := outputPath(cfg, o.name)
		if err != nil {
			return err
		}
		if err := writeFile(path, func(w *bufio.Writer) error { return o.write(w) }); err != nil {
			return err
		}
		logger.Info("wrote output", zap.String("path", path))
	}
	return nil
}

func storeCounts(store *duckdb.Store, runID string, res *count.Result) error {
	if err := store.WriteCounts(runID, res.Table); err != nil {
		return fmt.Errorf("store counts: %w", err)
	}
	if err := store.WriteUnmatched(runID, res.Unmatched); err != nil {
		return fmt.Errorf("store unmatched: %w", err)
	}
	return nil
}
