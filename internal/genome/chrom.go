// Package genome provides the in-memory genome reference index used for
// coordinate lookups and reference allele verification.
package genome

import "strings"

// NormalizeChrom returns the chromosome name in UCSC "chr" form.
// CCDS uses bare names ("1"), UCSC tracks and GDC MAFs use "chr1".
func NormalizeChrom(chrom string) string {
	chrom = strings.TrimSpace(chrom)
	if chrom == "" {
		return ""
	}
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		chrom = chrom[3:]
	}
	switch strings.ToUpper(chrom) {
	case "M", "MT":
		return "chrM"
	case "X", "Y":
		return "chr" + strings.ToUpper(chrom)
	}
	return "chr" + chrom
}
