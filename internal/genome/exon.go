package genome

// CodingExon is one coding block of a CCDS transcript.
type CodingExon struct {
	Chrom        string // Chromosome, "chr" form
	Start        int64  // 0-based, inclusive
	End          int64  // 0-based, exclusive
	Strand       int8   // +1 or -1
	TranscriptID string // CCDS id (e.g., CCDS30547.1)
	GeneID       string // Gene symbol
}

// Len returns the number of bases covered by the exon.
func (e CodingExon) Len() int64 {
	return e.End - e.Start
}

// Contains returns true if the 0-based position lies within the exon.
func (e CodingExon) Contains(pos int64) bool {
	return pos >= e.Start && pos < e.End
}
