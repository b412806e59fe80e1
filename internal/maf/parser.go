// Package maf reads GDC Mutation Annotation Format files, plain or gzipped.
package maf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MAF column names read by the parser.
const (
	ColHugoSymbol            = "Hugo_Symbol"
	ColChromosome            = "Chromosome"
	ColStartPosition         = "Start_Position"
	ColReferenceAllele       = "Reference_Allele"
	ColTumorSeqAllele1       = "Tumor_Seq_Allele1"
	ColTumorSeqAllele2       = "Tumor_Seq_Allele2"
	ColVariantClassification = "Variant_Classification"
	ColVariantType           = "Variant_Type"
	ColTumorSampleBarcode    = "Tumor_Sample_Barcode"
	ColNCBIBuild             = "NCBI_Build"
)

// RequiredColumns must all be present in the header.
var RequiredColumns = []string{
	ColChromosome,
	ColStartPosition,
	ColReferenceAllele,
	ColTumorSeqAllele2,
	ColVariantClassification,
}

// Row holds the MAF fields needed to validate one mutation.
type Row struct {
	Line                  int
	HugoSymbol            string
	Chromosome            string
	StartPosition         int64 // 1-based
	ReferenceAllele       string
	TumorSeqAllele1       string
	TumorSeqAllele2       string
	VariantClassification string
	VariantType           string
	TumorSampleBarcode    string
	NCBIBuild             string
}

// Parser reads mutation rows from a MAF file.
type Parser struct {
	reader  *bufio.Reader
	closers []io.Closer
	line    int
	columns map[string]int
	width   int // fields a row needs to carry every required column
}

// NewParser opens path and reads its header. Gzip input is detected from
// the magic bytes, not the file name.
func NewParser(path string) (*Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maf file: %w", err)
	}

	br := bufio.NewReader(f)
	p := &Parser{reader: br, closers: []io.Closer{f}}
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(gz)
		p.closers = append([]io.Closer{gz}, p.closers...)
	}

	if err := p.readHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser over uncompressed MAF text.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{reader: bufio.NewReader(r)}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// nextLine returns the next non-blank, non-comment line. The last line of
// a file may lack a newline.
func (p *Parser) nextLine() (string, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		p.line++
		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
}

// readHeader skips the "#version" preamble of GDC files and indexes the
// header columns.
func (p *Parser) readHeader() error {
	line, err := p.nextLine()
	if err == io.EOF {
		return &ParseError{Line: p.line, Message: "no header line found"}
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	p.columns = make(map[string]int)
	for i, name := range strings.Split(line, "\t") {
		p.columns[strings.TrimSpace(name)] = i
	}
	for _, name := range RequiredColumns {
		idx, ok := p.columns[name]
		if !ok {
			return &ParseError{
				Line:    p.line,
				Message: fmt.Sprintf("required column '%s' not found in header", name),
			}
		}
		p.width = max(p.width, idx+1)
	}
	return nil
}

// Next reads the next mutation row and returns nil, nil at end of input.
// A *ParseError means only the current line was malformed; Next may be
// called again.
func (p *Parser) Next() (*Row, error) {
	line, err := p.nextLine()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mutation line: %w", err)
	}

	fields := strings.Split(line, "\t")
	if len(fields) < p.width {
		return nil, p.errorf("expected at least %d columns, found %d", p.width, len(fields))
	}
	field := func(name string) string {
		if i, ok := p.columns[name]; ok && i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	pos, err := strconv.ParseInt(field(ColStartPosition), 10, 64)
	if err != nil {
		return nil, p.errorf("invalid position: %s", field(ColStartPosition))
	}
	chrom := field(ColChromosome)
	if chrom == "" {
		return nil, p.errorf("empty chromosome")
	}

	return &Row{
		Line:                  p.line,
		HugoSymbol:            field(ColHugoSymbol),
		Chromosome:            chrom,
		StartPosition:         pos,
		ReferenceAllele:       field(ColReferenceAllele),
		TumorSeqAllele1:       field(ColTumorSeqAllele1),
		TumorSeqAllele2:       field(ColTumorSeqAllele2),
		VariantClassification: field(ColVariantClassification),
		VariantType:           field(ColVariantType),
		TumorSampleBarcode:    field(ColTumorSampleBarcode),
		NCBIBuild:             field(ColNCBIBuild),
	}, nil
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Line: p.line, Message: fmt.Sprintf(format, args...)}
}

// Column returns the header index of a column, or -1 if it is absent.
func (p *Parser) Column(name string) int {
	if i, ok := p.columns[name]; ok {
		return i
	}
	return -1
}

// Close releases the gzip stream and file, if any.
func (p *Parser) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ParseError is a malformed MAF line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf parse error at line %d: %s", e.Line, e.Message)
}
