package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syncount/syncount/internal/config"
)

// Several commands share viper keys, so each binds its own flags when it
// runs rather than when it is constructed; the last BindPFlag for a key wins.
func bindOnRun(cmd *cobra.Command, keys map[string]string) {
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for key, name := range keys {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
				return err
			}
		}
		return nil
	}
}

func addTrackFlags(cmd *cobra.Command, keys map[string]string) {
	f := cmd.Flags()
	f.String("ccds", "", "CCDS table (CCDS.current.txt)")
	f.String("constraint", "", "Synonymous constraint elements (BED/BED12 or UCSC CSV)")
	f.String("acceleration", "", "Synonymous acceleration elements (BED/BED12 or UCSC CSV)")
	f.String("cache-dir", "", "Reuse built intervals from this directory when inputs are unchanged")
	keys[config.KeyCCDS] = "ccds"
	keys[config.KeyConstraint] = "constraint"
	keys[config.KeyAcceleration] = "acceleration"
	keys[config.KeyCacheDir] = "cache-dir"
}

func addGenomeFlags(cmd *cobra.Command, keys map[string]string) {
	f := cmd.Flags()
	f.String("genome", "", "Genome build FASTA (.fa or .fa.gz)")
	f.StringSlice("chroms", nil, "Only load these contigs from the genome build")
	keys[config.KeyGenome] = "genome"
	keys[config.KeyChroms] = "chroms"
}

func addMutationFlags(cmd *cobra.Command, keys map[string]string) {
	f := cmd.Flags()
	f.String("maf-dir", "", "Directory searched for *.maf and *.maf.gz")
	f.String("manifest", "", "Downloader manifest (maf_metadata.csv) selecting the corpus")
	f.String("strategy", "WXS", "Experimental strategy selected from the manifest (empty for all)")
	keys[config.KeyMutationDir] = "maf-dir"
	keys[config.KeyManifest] = "manifest"
	keys[config.KeyStrategy] = "strategy"
}
