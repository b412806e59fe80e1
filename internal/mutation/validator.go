package mutation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/genome"
	"github.com/syncount/syncount/internal/maf"
)

// BaseLookup returns the reference base at a 1-based position.
type BaseLookup interface {
	BaseAt(chrom string, pos int64) (byte, error)
}

// Outcome is the validation decision for one record.
type Outcome int

const (
	Accepted Outcome = iota
	AlleleMismatch
	ClassFiltered
	ReferenceError
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case AlleleMismatch:
		return "allele_mismatch"
	case ClassFiltered:
		return "class_filtered"
	case ReferenceError:
		return "reference_error"
	case Malformed:
		return "malformed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Diagnostics counts the outcome of every line of one or more files.
type Diagnostics struct {
	Accepted       int64
	AlleleMismatch int64
	ClassFiltered  int64
	Malformed      int64
	// ReferenceError counts records whose coordinate is outside the loaded
	// build, so their allele could not be checked.
	ReferenceError int64
}

// Tally increments the counter for an outcome.
func (d *Diagnostics) Tally(o Outcome) {
	switch o {
	case Accepted:
		d.Accepted++
	case AlleleMismatch:
		d.AlleleMismatch++
	case ClassFiltered:
		d.ClassFiltered++
	case ReferenceError:
		d.ReferenceError++
	case Malformed:
		d.Malformed++
	}
}

// Add accumulates other into d.
func (d *Diagnostics) Add(other Diagnostics) {
	d.Accepted += other.Accepted
	d.AlleleMismatch += other.AlleleMismatch
	d.ClassFiltered += other.ClassFiltered
	d.Malformed += other.Malformed
	d.ReferenceError += other.ReferenceError
}

// Total returns the number of lines accounted for.
func (d Diagnostics) Total() int64 {
	return d.Accepted + d.AlleleMismatch + d.ClassFiltered + d.Malformed + d.ReferenceError
}

// InputFileError means a mutation file could not be processed at all.
// Only that file is abandoned.
type InputFileError struct {
	Path string
	Err  error
}

func (e *InputFileError) Error() string {
	return fmt.Sprintf("mutation file %s: %v", e.Path, e.Err)
}

func (e *InputFileError) Unwrap() error {
	return e.Err
}

// Validator checks mutation records against the genome reference. It carries
// no state between files and is safe for concurrent use.
type Validator struct {
	ref    BaseLookup
	logger *zap.Logger
}

// NewValidator creates a validator backed by the reference lookup.
func NewValidator(ref BaseLookup) *Validator {
	return &Validator{ref: ref, logger: zap.NewNop()}
}

// SetLogger sets the logger for per-record rejections.
func (v *Validator) SetLogger(l *zap.Logger) {
	v.logger = l
}

// ValidateFile validates every record of one MAF file. Records are returned in
// input order. Malformed lines are skipped and counted. An unreadable file
// yields an *InputFileError, no records, and empty diagnostics: a file that
// fails partway through, such as a truncated gzip stream, contributes nothing
// to the run totals.
func (v *Validator) ValidateFile(path string) ([]Record, Diagnostics, error) {
	var diag Diagnostics

	parser, err := maf.NewParser(path)
	if err != nil {
		return nil, diag, &InputFileError{Path: path, Err: err}
	}
	defer parser.Close()

	defaultSample := SampleFromPath(path)
	var records []Record
	for {
		row, err := parser.Next()
		if err != nil {
			var parseErr *maf.ParseError
			if errors.As(err, &parseErr) {
				diag.Tally(Malformed)
				v.logger.Debug("malformed mutation line",
					zap.String("file", path),
					zap.Int("line", parseErr.Line),
					zap.Error(err))
				continue
			}
			return nil, Diagnostics{}, &InputFileError{Path: path, Err: err}
		}
		if row == nil {
			break
		}

		rec, outcome, err := v.Check(row, path, defaultSample)
		diag.Tally(outcome)
		if outcome != Accepted {
			v.logger.Debug("rejected mutation",
				zap.String("file", path),
				zap.Int("line", row.Line),
				zap.String("chrom", row.Chromosome),
				zap.Int64("pos", row.StartPosition),
				zap.Stringer("outcome", outcome),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	return records, diag, nil
}

// Check validates a single parsed row. The reference allele is verified first,
// so a mismatched record is rejected whatever its classification.
func (v *Validator) Check(row *maf.Row, sourceFile, defaultSample string) (Record, Outcome, error) {
	ref := strings.ToUpper(row.ReferenceAllele)
	alt := strings.ToUpper(row.TumorSeqAllele2)
	if alt == ref && row.TumorSeqAllele1 != "" {
		alt = strings.ToUpper(row.TumorSeqAllele1)
	}

	if ref == "" {
		return Record{}, Malformed, fmt.Errorf("empty reference allele")
	}

	if ref != "-" {
		for i := 0; i < len(ref); i++ {
			base, err := v.ref.BaseAt(row.Chromosome, row.StartPosition+int64(i))
			if err != nil {
				return Record{}, ReferenceError, err
			}
			if base != ref[i] {
				return Record{}, AlleleMismatch, fmt.Errorf("reference allele %s does not match genome base %c at offset %d", ref, base, i)
			}
		}
	}

	class := ClassFromMAF(row.VariantClassification)
	if class == Other {
		return Record{}, ClassFiltered, fmt.Errorf("classification %q not silent or missense", row.VariantClassification)
	}
	if !isSNV(ref, alt) || (row.VariantType != "" && row.VariantType != "SNP") {
		return Record{}, ClassFiltered, fmt.Errorf("not a single-nucleotide substitution: %s>%s (%s)", ref, alt, row.VariantType)
	}

	sample := row.TumorSampleBarcode
	if sample == "" {
		sample = defaultSample
	}

	return Record{
		Chrom:      genome.NormalizeChrom(row.Chromosome),
		Position:   row.StartPosition,
		Ref:        ref,
		Alt:        alt,
		Class:      class,
		SampleID:   sample,
		SourceFile: sourceFile,
		GeneSymbol: row.HugoSymbol,
	}, Accepted, nil
}

func isSNV(ref, alt string) bool {
	return len(ref) == 1 && len(alt) == 1 && ref != alt && isBase(ref[0]) && isBase(alt[0])
}

func isBase(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T':
		return true
	}
	return false
}

// SampleFromPath derives a sample id from a file name when the MAF lacks a
// Tumor_Sample_Barcode column.
func SampleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".maf")
	return base
}
