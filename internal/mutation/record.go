// Package mutation validates somatic mutation calls against the genome
// reference and carries the validated record table between pipeline stages.
package mutation

import "fmt"

// VariantClass is the study's classification of a single-nucleotide variant.
type VariantClass int

const (
	Other VariantClass = iota
	Silent
	Missense
)

func (c VariantClass) String() string {
	switch c {
	case Silent:
		return "SILENT"
	case Missense:
		return "MISSENSE"
	case Other:
		return "OTHER"
	}
	return fmt.Sprintf("VariantClass(%d)", int(c))
}

// ParseVariantClass parses the textual form written by VariantClass.String.
func ParseVariantClass(s string) (VariantClass, error) {
	switch s {
	case "SILENT":
		return Silent, nil
	case "MISSENSE":
		return Missense, nil
	case "OTHER":
		return Other, nil
	}
	return Other, fmt.Errorf("unknown variant class %q", s)
}

// ClassFromMAF maps a MAF Variant_Classification value to a VariantClass.
func ClassFromMAF(classification string) VariantClass {
	switch classification {
	case "Silent":
		return Silent
	case "Missense_Mutation":
		return Missense
	}
	return Other
}

// Record is one validated mutation call.
type Record struct {
	Chrom      string // "chr" form
	Position   int64  // 1-based, as in the MAF
	Ref        string
	Alt        string
	Class      VariantClass
	SampleID   string
	SourceFile string
	GeneSymbol string // Hugo_Symbol as called, informational
}

// Pos0 returns the 0-based position used for interval lookups.
func (r Record) Pos0() int64 {
	return r.Position - 1
}
