package track

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/genome"
)

// ElementKind distinguishes constraint from acceleration elements.
type ElementKind int

const (
	Constraint ElementKind = iota
	Acceleration
)

func (k ElementKind) String() string {
	switch k {
	case Constraint:
		return "SCE"
	case Acceleration:
		return "SAE"
	}
	return fmt.Sprintf("ElementKind(%d)", int(k))
}

// AnnotatedElement is a raw SCE or SAE region as downloaded. Elements may
// overlap other elements of either kind.
type AnnotatedElement struct {
	Chrom string
	Start int64 // 0-based, inclusive
	End   int64 // 0-based, exclusive
	Kind  ElementKind
	Score *float64
}

// ElementStats counts what happened to each element line.
type ElementStats struct {
	Rows      int
	Elements  int // BED12 rows explode into one element per block
	Malformed int
}

// ElementLoader loads SCE/SAE tracks in BED3-6 or BED12 layout.
type ElementLoader struct {
	path   string
	kind   ElementKind
	logger *zap.Logger
}

// NewElementLoader creates a loader for one element track.
func NewElementLoader(path string, kind ElementKind) *ElementLoader {
	return &ElementLoader{path: path, kind: kind, logger: zap.NewNop()}
}

// SetLogger sets the logger for skipped rows.
func (l *ElementLoader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Load reads every element in the track.
func (l *ElementLoader) Load() ([]AnnotatedElement, ElementStats, error) {
	r, err := openTrack(l.path)
	if err != nil {
		return nil, ElementStats{}, fmt.Errorf("open %s track: %w", l.kind, err)
	}
	defer r.Close()

	return l.parse(r)
}

func (l *ElementLoader) parse(r io.Reader) ([]AnnotatedElement, ElementStats, error) {
	var (
		stats    ElementStats
		elements []AnnotatedElement
		lineNo   int
		seenData bool
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}

		fields := splitElementLine(line)
		els, err := parseElementRow(fields, l.kind)
		if err != nil {
			// A leading column-name row is a header, not a malformed line.
			if !seenData && len(fields) > 1 && !isInteger(fields[1]) {
				seenData = true
				continue
			}
			stats.Rows++
			stats.Malformed++
			l.logger.Warn("skipping malformed element row",
				zap.String("file", l.path),
				zap.Int("line", lineNo),
				zap.Error(&ParseError{Path: l.path, Line: lineNo, Message: err.Error()}))
			continue
		}
		seenData = true
		stats.Rows++
		elements = append(elements, els...)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan %s track: %w", l.kind, err)
	}

	stats.Elements = len(elements)
	return elements, stats, nil
}

// splitElementLine accepts tab-delimited BED and the comma-separated UCSC
// table browser export. BED12 block lists keep their commas in the tab form.
func splitElementLine(line string) []string {
	if strings.Contains(line, "\t") {
		return strings.Split(line, "\t")
	}
	return splitCSV(line)
}

// splitCSV splits a comma-separated line honoring double quotes, which UCSC
// uses around block lists.
func splitCSV(line string) []string {
	var (
		fields []string
		cur    strings.Builder
		quoted bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

func parseElementRow(fields []string, kind ElementKind) ([]AnnotatedElement, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("expected at least 3 columns, found %d", len(fields))
	}

	chrom := genome.NormalizeChrom(fields[0])
	start, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start: %s", fields[1])
	}
	end, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid end: %s", fields[2])
	}
	if chrom == "" || start < 0 || start >= end {
		return nil, fmt.Errorf("invalid element %s:%d-%d", fields[0], start, end)
	}

	var score *float64
	if len(fields) >= 5 {
		if s, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64); err == nil {
			score = &s
		}
	}

	if len(fields) < 12 {
		return []AnnotatedElement{{Chrom: chrom, Start: start, End: end, Kind: kind, Score: score}}, nil
	}

	sizes, err := parseIntList(fields[10])
	if err != nil {
		return nil, fmt.Errorf("invalid blockSizes: %w", err)
	}
	offsets, err := parseIntList(fields[11])
	if err != nil {
		return nil, fmt.Errorf("invalid blockStarts: %w", err)
	}
	if len(sizes) != len(offsets) || len(sizes) == 0 {
		return nil, fmt.Errorf("block lists differ in length: %d sizes, %d starts", len(sizes), len(offsets))
	}

	elements := make([]AnnotatedElement, 0, len(sizes))
	for i := range sizes {
		bs := start + offsets[i]
		be := bs + sizes[i]
		if sizes[i] <= 0 || be > end {
			return nil, fmt.Errorf("block %d [%d,%d) outside element [%d,%d)", i, bs, be, start, end)
		}
		elements = append(elements, AnnotatedElement{Chrom: chrom, Start: bs, End: be, Kind: kind, Score: score})
	}
	return elements, nil
}

func parseIntList(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(strings.Trim(strings.TrimSpace(s), ","), ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func isInteger(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}
