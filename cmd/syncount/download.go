package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syncount/syncount/internal/config"
)

// Reference sources for GRCh38.
const (
	ccdsURL   = "https://ftp.ncbi.nlm.nih.gov/pub/CCDS/current_human/" + config.CCDSFileName
	genomeURL = "https://hgdownload.soe.ucsc.edu/goldenPath/hg38/bigZips/" + config.GenomeFileName
)

func newDownloadCmd() *cobra.Command {
	var ccdsOnly bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the CCDS table and GRCh38 genome build",
		Long: `Download CCDS.current.txt from NCBI and hg38.fa.gz from UCSC into the
reference directory (default: ~/.syncount/grch38). Files already present are
skipped. Other commands use these files when --ccds or --genome is not given.

Element tracks and mutation files are not downloaded.`,
		Example: `  syncount download
  syncount download --ccds-only
  syncount download --dir /data/grch38`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(viper.GetString(config.KeyReferenceDir), ccdsOnly)
		},
	}

	cmd.Flags().String("dir", "", "Reference directory (default: ~/.syncount/grch38)")
	cmd.Flags().BoolVar(&ccdsOnly, "ccds-only", false, "Only download the CCDS table (skip the genome build)")
	bindOnRun(cmd, map[string]string{config.KeyReferenceDir: "dir"})
	return cmd
}

func runDownload(destDir string, ccdsOnly bool) error {
	if destDir == "" {
		return fmt.Errorf("cannot determine reference directory; pass --dir")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", destDir, err)
	}

	fmt.Printf("Downloading GRCh38 reference files...\n")
	fmt.Printf("Destination: %s\n\n", destDir)

	if err := downloadFile(ccdsURL, filepath.Join(destDir, config.CCDSFileName)); err != nil {
		return fmt.Errorf("downloading CCDS: %w", err)
	}
	if !ccdsOnly {
		if err := downloadFile(genomeURL, filepath.Join(destDir, config.GenomeFileName)); err != nil {
			return fmt.Errorf("downloading genome build: %w", err)
		}
	}

	fmt.Printf("\nDownload complete!\n")
	fmt.Printf("To build intervals, run:\n")
	fmt.Printf("  syncount intervals --constraint sce.bed --acceleration sae.bed\n")
	return nil
}

// downloadFile fetches url into destPath, skipping files that exist.
func downloadFile(url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Printf("  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Printf("  Downloading %s...\n", filepath.Base(destPath))

	client := &http.Client{
		Timeout: 30 * time.Minute,
	}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	// Partial downloads never take the final name.
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	pw := &progressWriter{
		out:       os.Stdout,
		total:     resp.ContentLength,
		lastPrint: time.Now(),
	}
	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Printf("    Done: %s\n", formatSize(pw.downloaded))
	return nil
}

// progressWriter prints download progress at most once a second.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", formatSize(pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}
	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
