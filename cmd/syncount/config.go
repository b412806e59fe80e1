package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/syncount/syncount/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage syncount configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/.syncount.yaml
unless --config names another file.

'config' shows every setting as the pipeline would resolve it, defaults
included. 'config set' writes only the named setting to the file.`,
		Example: `  syncount config                                   # show resolved settings
  syncount config set reference.constraint sce.bed  # default constraint track
  syncount config set reference.chroms chr1,chr2    # limit the genome build
  syncount config set workers 8                     # default worker count
  syncount config get reference.ccds                # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(args[0])
		},
	}
}

// resolvedSettings nests every known setting by its dotted key.
func resolvedSettings() map[string]any {
	out := make(map[string]any)
	for _, key := range config.Keys {
		section, name, nested := strings.Cut(key, ".")
		if !nested {
			out[key] = viper.Get(key)
			continue
		}
		m, ok := out[section].(map[string]any)
		if !ok {
			m = make(map[string]any)
			out[section] = m
		}
		m[name] = viper.Get(key)
	}
	return out
}

func runConfigShow() error {
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Printf("# Config file: %s\n", used)
	} else {
		fmt.Println("# No config file. Defaults shown; write one with 'syncount config set'.")
	}

	out, err := yaml.Marshal(resolvedSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".syncount.yaml"), nil
}

// runConfigSet rewrites the config file with one setting changed. Defaults,
// flags and environment variables are not copied into the file.
func runConfigSet(key, value string) error {
	val, err := config.ParseValue(key, value)
	if err != nil {
		return &usageError{err}
	}

	cfgFile, err := configFilePath()
	if err != nil {
		return err
	}

	file := viper.New()
	file.SetConfigFile(cfgFile)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}
	file.Set(key, val)

	if err := file.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Set %s = %v in %s\n", key, val, cfgFile)
	return nil
}

func runConfigGet(key string) error {
	if !config.IsKey(key) {
		return &usageError{fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(config.Keys, ", "))}
	}
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Println(val)
	return nil
}
