package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/config"
	"github.com/syncount/syncount/internal/count"
	"github.com/syncount/syncount/internal/mutation"
	"github.com/syncount/syncount/internal/output"
)

func newValidateCmd() *cobra.Command {
	keys := map[string]string{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate MAF mutation calls against the genome build",
		Long: `Check every MAF record's reference allele against the genome build and keep
silent and missense single-nucleotide substitutions. Writes
validated_mutations.tsv and diagnostics.tsv; every dropped record is
counted under allele_mismatch, class_filtered, malformed, or reference_error.`,
		Example: `  syncount validate --genome hg38.fa.gz --maf-dir gdc/
  syncount validate --genome hg38.fa.gz --manifest gdc/maf_metadata.csv --strategy WXS`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context())
		},
	}
	addGenomeFlags(cmd, keys)
	addMutationFlags(cmd, keys)
	bindOnRun(cmd, keys)
	return cmd
}

func runValidate(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.RequireValidationInputs(); err != nil {
		return &usageError{err}
	}

	ref, err := loadGenome(cfg, logger)
	if err != nil {
		return err
	}
	out, err := validateCorpus(ctx, cfg, ref, nil, logger)
	if err != nil {
		return err
	}

	if err := writeValidated(cfg, out, logger); err != nil {
		return err
	}

	store, run, err := openStore(cfg, "validate", logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		if err := store.WriteMutations(run.ID, out.Records); err != nil {
			return fmt.Errorf("store mutations: %w", err)
		}
		if err := store.WriteDiagnostics(run.ID, out.Reports); err != nil {
			return fmt.Errorf("store diagnostics: %w", err)
		}
		if err := store.FinishRun(run.ID, out.Summary); err != nil {
			return err
		}
	}

	out.Summary.Log(logger)
	return output.WriteRunSummary(os.Stderr, out.Summary)
}

// validateCorpus runs the corpus through the validator, counting against
// counter when it is not nil.
func validateCorpus(ctx context.Context, cfg config.Config, ref mutation.BaseLookup, counter *count.Counter, logger *zap.Logger) (*count.RunOutput, error) {
	files, missing, err := selectFiles(cfg, logger)
	if err != nil {
		return nil, err
	}

	validator := mutation.NewValidator(ref)
	validator.SetLogger(logger)
	if counter != nil {
		counter.SetLogger(logger)
	}
	runner := count.NewRunner(validator, counter, cfg.Workers)
	runner.SetLogger(logger)

	out, err := runner.Run(ctx, files)
	if err != nil {
		return nil, err
	}
	out.Summary.Missing = missing
	return out, nil
}

// writeValidated writes the validated table and per-file diagnostics.
func writeValidated(cfg config.Config, out *count.RunOutput, logger *zap.Logger) error {
	path, err := outputPath(cfg, validatedFile)
	if err != nil {
		return err
	}
	if err := writeFile(path, func(w *bufio.Writer) error {
		mw := mutation.NewWriter(w)
		if err := mw.WriteHeader(); err != nil {
			return err
		}
		if err := mw.Write(out.Records); err != nil {
			return err
		}
		return mw.Flush()
	}); err != nil {
		return err
	}
	logger.Info("wrote validated mutations", zap.String("path", path), zap.Int("records", len(out.Records)))

	path, err = outputPath(cfg, diagnosticsFile)
	if err != nil {
		return err
	}
	return writeFile(path, func(w *bufio.Writer) error {
		dw := output.NewDiagnosticsWriter(w)
		if err := dw.WriteHeader(); err != nil {
			return err
		}
		if err := dw.Write(out.Reports); err != nil {
			return err
		}
		return dw.Flush()
	})
}
