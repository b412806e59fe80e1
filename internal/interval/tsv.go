package interval

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TSVHeader is the column layout of the normalized interval file.
var TSVHeader = []string{"chrom", "start", "end", "gene", "region_category"}

// WriteTSV writes intervals as a tab-delimited table with a header line.
func WriteTSV(w io.Writer, ivs []GenomicInterval) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(TSVHeader, "\t") + "\n"); err != nil {
		return err
	}
	for _, iv := range ivs {
		if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\t%s\t%s\n",
			iv.Chrom, iv.Start, iv.End, iv.GeneID, iv.Category); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTSV reads an interval file written by WriteTSV. The interval file is
// produced by this program, so any malformed row is an error.
func ReadTSV(r io.Reader) ([]GenomicInterval, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		ivs    []GenomicInterval
		lineNo int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if lineNo == 1 {
			if line != strings.Join(TSVHeader, "\t") {
				return nil, fmt.Errorf("interval file line 1: unexpected header %q", line)
			}
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != len(TSVHeader) {
			return nil, fmt.Errorf("interval file line %d: expected %d columns, found %d", lineNo, len(TSVHeader), len(fields))
		}
		start, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("interval file line %d: invalid start: %w", lineNo, err)
		}
		end, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("interval file line %d: invalid end: %w", lineNo, err)
		}
		if start >= end {
			return nil, fmt.Errorf("interval file line %d: empty interval [%d,%d)", lineNo, start, end)
		}
		cat, err := ParseCategory(fields[4])
		if err != nil {
			return nil, fmt.Errorf("interval file line %d: %w", lineNo, err)
		}
		ivs = append(ivs, GenomicInterval{
			Chrom:    fields[0],
			Start:    start,
			End:      end,
			GeneID:   fields[3],
			Category: cat,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan interval file: %w", err)
	}
	return ivs, nil
}
