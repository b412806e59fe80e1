package track

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/genome"
)

// CCDS column names (CCDS.current.txt from NCBI).
const (
	ColCCDSChromosome = "#chromosome"
	ColCCDSGene       = "gene"
	ColCCDSID         = "ccds_id"
	ColCCDSStatus     = "ccds_status"
	ColCCDSStrand     = "cds_strand"
	ColCCDSLocations  = "cds_locations"
	ColCCDSMatchType  = "match_type"
)

// CCDSStats counts what happened to each CCDS row.
type CCDSStats struct {
	Rows      int // data rows read
	Kept      int // rows turned into exons
	Filtered  int // withdrawn or partial-match rows
	Malformed int // unparsable rows
	Exons     int
}

// CCDSLoader loads coding exons from a CCDS table.
type CCDSLoader struct {
	path   string
	logger *zap.Logger
}

// NewCCDSLoader creates a new CCDS loader.
func NewCCDSLoader(path string) *CCDSLoader {
	return &CCDSLoader{path: path, logger: zap.NewNop()}
}

// SetLogger sets the logger for skipped rows.
func (l *CCDSLoader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Load reads the CCDS file. Malformed rows are skipped and counted; a file
// without the required header columns or without a single usable row is a
// structural error, since every interval depends on it.
func (l *CCDSLoader) Load() ([]genome.CodingExon, CCDSStats, error) {
	r, err := openTrack(l.path)
	if err != nil {
		return nil, CCDSStats{}, fmt.Errorf("open CCDS file: %w", err)
	}
	defer r.Close()

	return l.parse(r)
}

type ccdsColumns struct {
	chrom, gene, id, status, strand, locations, matchType int
}

func (l *CCDSLoader) parse(r io.Reader) ([]genome.CodingExon, CCDSStats, error) {
	var (
		stats  CCDSStats
		exons  []genome.CodingExon
		cols   ccdsColumns
		header bool
		lineNo int
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if !header {
			var err error
			cols, err = parseCCDSHeader(line)
			if err != nil {
				return nil, stats, &ParseError{Path: l.path, Line: lineNo, Message: err.Error()}
			}
			header = true
			continue
		}

		stats.Rows++
		rowExons, keep, err := parseCCDSRow(strings.Split(line, "\t"), cols)
		if err != nil {
			stats.Malformed++
			l.logger.Warn("skipping malformed CCDS row",
				zap.String("file", l.path),
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		if !keep {
			stats.Filtered++
			continue
		}
		stats.Kept++
		exons = append(exons, rowExons...)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan CCDS: %w", err)
	}

	if !header {
		return nil, stats, &ParseError{Path: l.path, Line: lineNo, Message: "no header line found"}
	}
	if stats.Kept == 0 {
		return nil, stats, &ParseError{Path: l.path, Line: lineNo, Message: "no usable CCDS rows"}
	}

	stats.Exons = len(exons)
	return exons, stats, nil
}

func parseCCDSHeader(line string) (ccdsColumns, error) {
	cols := ccdsColumns{-1, -1, -1, -1, -1, -1, -1}
	for i, name := range strings.Split(line, "\t") {
		switch strings.TrimSpace(name) {
		case ColCCDSChromosome, "chromosome":
			cols.chrom = i
		case ColCCDSGene:
			cols.gene = i
		case ColCCDSID:
			cols.id = i
		case ColCCDSStatus:
			cols.status = i
		case ColCCDSStrand:
			cols.strand = i
		case ColCCDSLocations:
			cols.locations = i
		case ColCCDSMatchType:
			cols.matchType = i
		}
	}

	required := []struct {
		idx  int
		name string
	}{
		{cols.chrom, ColCCDSChromosome},
		{cols.gene, ColCCDSGene},
		{cols.strand, ColCCDSStrand},
		{cols.locations, ColCCDSLocations},
	}
	for _, r := range required {
		if r.idx == -1 {
			return cols, fmt.Errorf("required column %q not found in header", r.name)
		}
	}
	return cols, nil
}

// parseCCDSRow explodes one CCDS row into its coding exons. The second return
// value is false for rows that are withdrawn or only partially matched.
func parseCCDSRow(fields []string, cols ccdsColumns) ([]genome.CodingExon, bool, error) {
	get := func(i int) string {
		if i < 0 || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	maxCol := max(cols.chrom, cols.gene, cols.strand, cols.locations)
	if len(fields) <= maxCol {
		return nil, false, fmt.Errorf("expected at least %d columns, found %d", maxCol+1, len(fields))
	}

	if status := get(cols.status); status != "" && status != "Public" {
		return nil, false, nil
	}
	if get(cols.matchType) == "Partial" {
		return nil, false, nil
	}

	chrom := genome.NormalizeChrom(get(cols.chrom))
	gene := get(cols.gene)
	if chrom == "" || gene == "" {
		return nil, false, fmt.Errorf("missing chromosome or gene")
	}

	var strand int8
	switch get(cols.strand) {
	case "+":
		strand = 1
	case "-":
		strand = -1
	default:
		return nil, false, fmt.Errorf("invalid strand %q", get(cols.strand))
	}

	spans, err := parseLocations(get(cols.locations))
	if err != nil {
		return nil, false, err
	}

	exons := make([]genome.CodingExon, 0, len(spans))
	for _, s := range spans {
		exons = append(exons, genome.CodingExon{
			Chrom:        chrom,
			Start:        s[0],
			End:          s[1],
			Strand:       strand,
			TranscriptID: get(cols.id),
			GeneID:       gene,
		})
	}
	sort.Slice(exons, func(i, j int) bool { return exons[i].Start < exons[j].Start })
	return exons, true, nil
}

// parseLocations parses a CCDS location list such as "[925941-926012, 930154-930335]".
// CCDS coordinates are 0-based with inclusive ends; the result is half-open.
func parseLocations(s string) ([][2]int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" || s == "-" {
		return nil, fmt.Errorf("empty cds_locations")
	}

	var spans [][2]int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid location %q", part)
		}
		start, err1 := strconv.ParseInt(strings.TrimSpace(bounds[0]), 10, 64)
		end, err2 := strconv.ParseInt(strings.TrimSpace(bounds[1]), 10, 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("invalid location %q", part)
		}
		spans = append(spans, [2]int64{start, end + 1})
	}
	return spans, nil
}
