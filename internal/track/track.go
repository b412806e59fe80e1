// Package track parses raw reference annotation tracks: the CCDS coding
// sequence table and the SCE/SAE element files downloaded from UCSC.
package track

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseError represents a malformed track line. Malformed lines are skipped
// and counted; they never abort a load on their own.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("track parse error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("track parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
}

// openTrack opens a plain or gzipped track file.
func openTrack(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	return &gzipFile{Reader: gz, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	g.Reader.Close()
	return g.f.Close()
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	return scanner
}
