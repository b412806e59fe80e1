// Package main provides the syncount command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/config"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError marks errors caused by bad invocation rather than bad data.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run())
}

func run() int {
	// Interrupts stop new mutation files from being started.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ue *usageError
		if errors.As(err, &ue) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "syncount",
		Short: "Count somatic mutations in synonymous constraint and acceleration elements",
		Long: `syncount builds gene-tagged coding intervals split into constraint (SCE),
acceleration (SAE) and background sequence, validates MAF mutation calls
against the genome build, and counts silent and missense mutations per
gene, region category, and sample.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ~/.syncount.yaml)")
	flags.BoolP("verbose", "v", false, "Development logging at debug level")
	flags.Int("workers", 0, "Mutation files processed concurrently (default: number of CPUs)")
	flags.String("out", "", "Output directory (default: current directory)")
	flags.String("duckdb", "", "Also store every artifact in this DuckDB database")
	bindFlags(flags, map[string]string{
		config.KeyVerbose:   "verbose",
		config.KeyWorkers:   "workers",
		config.KeyOutputDir: "out",
		config.KeyDuckDB:    "duckdb",
	})

	cmd.AddCommand(newIntervalsCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newCountCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig reads the config file and SYNCOUNT_ environment variables.
func initConfig(cfgFile string) error {
	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("SYNCOUNT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".syncount")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// loadConfig returns the resolved settings and a logger built from them.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// bindFlags binds viper keys to flags of the set.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// outputPath joins name onto the configured output directory, creating it.
func outputPath(cfg config.Config, name string) (string, error) {
	dir := cfg.Output.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}
