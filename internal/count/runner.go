package count

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/syncount/syncount/internal/mutation"
)

// DiscoverFiles returns every .maf and .maf.gz file below dir, sorted.
func DiscoverFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".maf") || strings.HasSuffix(name, ".maf.gz") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover mutation files in %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Manifest columns written by the corpus downloader.
const (
	ManifestFilePath = "file_path"
	ManifestStrategy = "experimental_strategy"
)

// ManifestSelection is the subset of a downloader manifest that is present on
// disk and matches the requested experimental strategy.
type ManifestSelection struct {
	Files   []string
	Listed  int // rows in the manifest
	Skipped int // rows with another strategy
	Missing int // matching rows whose file is not on disk
}

// LoadManifest reads a downloader manifest CSV and resolves its file paths
// relative to the manifest's directory. Paths listed without ".gz" also match
// a gzipped file on disk. An empty strategy selects every row. Missing files
// are counted, not treated as errors.
func LoadManifest(path, strategy string) (*ManifestSelection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}
	pathCol, strategyCol := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case ManifestFilePath:
			pathCol = i
		case ManifestStrategy:
			strategyCol = i
		}
	}
	if pathCol == -1 {
		return nil, fmt.Errorf("manifest %s: column %q not found", path, ManifestFilePath)
	}
	if strategy != "" && strategyCol == -1 {
		return nil, fmt.Errorf("manifest %s: column %q not found", path, ManifestStrategy)
	}

	base := filepath.Dir(path)
	sel := &ManifestSelection{}
	seen := make(map[string]bool)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		if pathCol >= len(row) {
			continue
		}
		sel.Listed++
		if strategy != "" && (strategyCol >= len(row) || !strings.EqualFold(strings.TrimSpace(row[strategyCol]), strategy)) {
			sel.Skipped++
			continue
		}

		rel := strings.TrimSpace(row[pathCol])
		if !filepath.IsAbs(rel) {
			rel = filepath.Join(base, rel)
		}
		resolved := ""
		for _, candidate := range []string{rel, rel + ".gz"} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				resolved = candidate
				break
			}
		}
		if resolved == "" {
			sel.Missing++
			continue
		}
		if !seen[resolved] {
			seen[resolved] = true
			sel.Files = append(sel.Files, resolved)
		}
	}
	sort.Strings(sel.Files)
	return sel, nil
}

// FileReport is the per-file outcome of a run.
type FileReport struct {
	Path        string
	Diagnostics mutation.Diagnostics
	Unmatched   int
	Conflicts   int
	Err         error
}

// RunSummary holds run-wide totals. Every rejected record is accounted for in
// one of the diagnostics counters, Unmatched, or Conflicts.
type RunSummary struct {
	Files       int
	FilesOK     int
	FilesFailed int
	Missing     int
	Diagnostics mutation.Diagnostics
	Counted     int64
	Unmatched   int
	Conflicts   int
}

// Log writes the summary at info level.
func (s RunSummary) Log(logger *zap.Logger) {
	logger.Info("run summary",
		zap.Int("files", s.Files),
		zap.Int("files_ok", s.FilesOK),
		zap.Int("files_failed", s.FilesFailed),
		zap.Int("files_missing", s.Missing),
		zap.Int64("accepted", s.Diagnostics.Accepted),
		zap.Int64("allele_mismatch", s.Diagnostics.AlleleMismatch),
		zap.Int64("class_filtered", s.Diagnostics.ClassFiltered),
		zap.Int64("malformed", s.Diagnostics.Malformed),
		zap.Int64("reference_error", s.Diagnostics.ReferenceError),
		zap.Int64("counted", s.Counted),
		zap.Int("unmatched", s.Unmatched),
		zap.Int("conflicts", s.Conflicts))
}

// RunOutput is everything a run produces.
type RunOutput struct {
	Result  *Result
	Reports []FileReport      // sorted by path
	Records []mutation.Record // validated records, file by file in path order
	Summary RunSummary
}

// Runner validates and counts a corpus of mutation files in parallel.
type Runner struct {
	validator *mutation.Validator
	counter   *Counter
	workers   int
	logger    *zap.Logger
}

// NewRunner creates a runner. If workers is 0, runtime.NumCPU() is used.
// A nil counter validates files without counting them.
func NewRunner(validator *mutation.Validator, counter *Counter, workers int) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		validator: validator,
		counter:   counter,
		workers:   workers,
		logger:    zap.NewNop(),
	}
}

// SetLogger sets the logger for per-file progress.
func (r *Runner) SetLogger(l *zap.Logger) {
	r.logger = l
}

type filePartial struct {
	report  FileReport
	records []mutation.Record
	result  *Result
}

// Run processes files with a bounded pool of workers. Each worker validates
// and counts one file to completion; a single goroutine merges the partial
// results. A file that cannot be read is reported and skipped. Cancelling ctx
// stops new files from being started and Run returns what was merged so far
// together with the context error.
func (r *Runner) Run(ctx context.Context, files []string) (*RunOutput, error) {
	partials := make(chan filePartial, r.workers)

	out := &RunOutput{Result: NewResult()}
	records := make(map[string][]mutation.Record)
	merged := make(chan struct{})
	go func() {
		defer close(merged)
		for p := range partials {
			out.Result.Merge(p.result)
			out.Reports = append(out.Reports, p.report)
			records[p.report.Path] = p.records
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := r.processFile(path)
			select {
			case partials <- p:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	err := g.Wait()
	close(partials)
	<-merged

	sort.Slice(out.Reports, func(i, j int) bool {
		return out.Reports[i].Path < out.Reports[j].Path
	})
	sortBySource(out.Result)
	for _, rep := range out.Reports {
		out.Records = append(out.Records, records[rep.Path]...)
	}
	out.Summary = summarize(out)

	if err == nil {
		err = ctx.Err()
	}
	return out, err
}

func (r *Runner) processFile(path string) filePartial {
	recs, diag, err := r.validator.ValidateFile(path)
	if err != nil {
		var fileErr *mutation.InputFileError
		if errors.As(err, &fileErr) {
			r.logger.Warn("skipping unreadable mutation file", zap.String("file", path), zap.Error(err))
		} else {
			r.logger.Error("mutation file failed", zap.String("file", path), zap.Error(err))
		}
		return filePartial{
			report: FileReport{Path: path, Diagnostics: diag, Err: err},
			result: NewResult(),
		}
	}

	res := NewResult()
	if r.counter != nil {
		res = r.counter.Count(recs)
	}
	r.logger.Debug("processed mutation file",
		zap.String("file", path),
		zap.Int64("accepted", diag.Accepted),
		zap.Int("unmatched", len(res.Unmatched)))

	return filePartial{
		report: FileReport{
			Path:        path,
			Diagnostics: diag,
			Unmatched:   len(res.Unmatched),
			Conflicts:   len(res.Conflicts),
		},
		records: recs,
		result:  res,
	}
}

// sortBySource orders unmatched records and conflicts by source file. Each
// file's records arrive as one contiguous block, so a stable sort makes the
// order independent of worker scheduling.
func sortBySource(res *Result) {
	sort.SliceStable(res.Unmatched, func(i, j int) bool {
		return res.Unmatched[i].SourceFile < res.Unmatched[j].SourceFile
	})
	sort.SliceStable(res.Conflicts, func(i, j int) bool {
		return res.Conflicts[i].Record.SourceFile < res.Conflicts[j].Record.SourceFile
	})
}

func summarize(out *RunOutput) RunSummary {
	s := out.Result.Summary()
	s.Files = len(out.Reports)
	for _, rep := range out.Reports {
		if rep.Err != nil {
			s.FilesFailed++
		} else {
			s.FilesOK++
		}
		s.Diagnostics.Add(rep.Diagnostics)
	}
	return s
}
