package interval

import "fmt"

// Category is the mutually exclusive region classification of a coding base.
type Category int

const (
	BackgroundCDS Category = iota
	ConstraintCDS
	AccelerationCDS
)

// Categories lists every region category in output order.
var Categories = []Category{BackgroundCDS, ConstraintCDS, AccelerationCDS}

func (c Category) String() string {
	switch c {
	case BackgroundCDS:
		return "BACKGROUND_CDS"
	case ConstraintCDS:
		return "CONSTRAINT_CDS"
	case AccelerationCDS:
		return "ACCELERATION_CDS"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ParseCategory parses the textual form written by Category.String.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown region category %q", s)
}

// GenomicInterval is one normalized, gene-tagged region of coding sequence.
type GenomicInterval struct {
	Chrom    string
	Start    int64 // 0-based, inclusive
	End      int64 // 0-based, exclusive
	GeneID   string
	Category Category
}

// Len returns the number of bases in the interval.
func (g GenomicInterval) Len() int64 {
	return g.End - g.Start
}

// Contains returns true if the 0-based position lies within the interval.
func (g GenomicInterval) Contains(pos int64) bool {
	return pos >= g.Start && pos < g.End
}
