package mutation

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TSVHeader is the column layout of the validated mutation table.
var TSVHeader = []string{"source_file", "sample_id", "gene", "chrom", "position", "ref", "alt", "variant_class"}

// Writer appends validated records to a tab-delimited table.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a validated-table writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (tw *Writer) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(TSVHeader, "\t") + "\n")
	return err
}

// Write writes records in order.
func (tw *Writer) Write(records []Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintf(tw.w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.SourceFile, r.SampleID, r.GeneSymbol, r.Chrom, r.Position, r.Ref, r.Alt, r.Class); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes buffered rows.
func (tw *Writer) Flush() error {
	return tw.w.Flush()
}

// ReadTSV reads a validated table written by Writer. The table is produced by
// this program, so any malformed row is an error.
func ReadTSV(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		records []Record
		lineNo  int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if lineNo == 1 {
			if line != strings.Join(TSVHeader, "\t") {
				return nil, fmt.Errorf("mutation table line 1: unexpected header %q", line)
			}
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != len(TSVHeader) {
			return nil, fmt.Errorf("mutation table line %d: expected %d columns, found %d", lineNo, len(TSVHeader), len(fields))
		}
		pos, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("mutation table line %d: invalid position: %w", lineNo, err)
		}
		class, err := ParseVariantClass(fields[7])
		if err != nil {
			return nil, fmt.Errorf("mutation table line %d: %w", lineNo, err)
		}
		records = append(records, Record{
			SourceFile: fields[0],
			SampleID:   fields[1],
			GeneSymbol: fields[2],
			Chrom:      fields[3],
			Position:   pos,
			Ref:        fields[5],
			Alt:        fields[6],
			Class:      class,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan mutation table: %w", err)
	}
	return records, nil
}
