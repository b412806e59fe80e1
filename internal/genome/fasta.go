package genome

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// FASTALoader loads chromosome sequences from a genome build FASTA file.
type FASTALoader struct {
	path      string
	only      map[string]bool // normalized contig names to keep; nil keeps all
	sequences map[string][]byte
}

// NewFASTALoader creates a new FASTA loader. If chroms is non-empty, only
// those contigs are kept in memory.
func NewFASTALoader(path string, chroms ...string) *FASTALoader {
	l := &FASTALoader{
		path:      path,
		sequences: make(map[string][]byte),
	}
	if len(chroms) > 0 {
		l.only = make(map[string]bool, len(chroms))
		for _, c := range chroms {
			l.only[NormalizeChrom(c)] = true
		}
	}
	return l
}

// Load parses the FASTA file and stores sequences indexed by contig name.
func (l *FASTALoader) Load() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return l.parseFASTA(reader)
}

// parseFASTA parses FASTA content. Headers look like:
// >chr1  AC:CM000663.2  gi:568336023  LN:248956422  rl:Chromosome  M5:...
func (l *FASTALoader) parseFASTA(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		currentID string
		keep      bool
		seq       bytes.Buffer
	)

	flush := func() {
		if currentID != "" && keep && seq.Len() > 0 {
			l.sequences[currentID] = bytes.ToUpper(seq.Bytes())
		}
		seq = bytes.Buffer{}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if line[0] == '>' {
			flush()
			currentID = parseContigName(string(line))
			keep = l.only == nil || l.only[currentID]
			continue
		}
		if keep {
			seq.Write(bytes.TrimSpace(line))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan FASTA: %w", err)
	}
	return nil
}

// parseContigName extracts the normalized contig name from a FASTA header.
func parseContigName(header string) string {
	header = strings.TrimPrefix(header, ">")
	if fields := strings.Fields(header); len(fields) > 0 {
		return NormalizeChrom(fields[0])
	}
	return ""
}

// Sequences returns the loaded sequences keyed by contig name.
func (l *FASTALoader) Sequences() map[string][]byte {
	return l.sequences
}

// SequenceCount returns the number of loaded contigs.
func (l *FASTALoader) SequenceCount() int {
	return len(l.sequences)
}
