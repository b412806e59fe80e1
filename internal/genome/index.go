package genome

import (
	"fmt"
	"sort"
)

// ReferenceLookupError is returned when a requested coordinate falls outside
// the loaded genome build. Callers treat it as "cannot validate".
type ReferenceLookupError struct {
	Chrom string
	Pos   int64
	Msg   string
}

func (e *ReferenceLookupError) Error() string {
	return fmt.Sprintf("reference lookup %s:%d: %s", e.Chrom, e.Pos, e.Msg)
}

// Index provides read-only access to reference bases and per-gene coding exons.
// It is safe for concurrent use once built.
type Index struct {
	sequences map[string][]byte
	exons     map[string][]CodingExon // gene_id -> exons sorted by start
}

// NewIndex builds an index from contig sequences and coding exons.
// Exons are grouped by gene and ordered by genomic position regardless of strand.
func NewIndex(sequences map[string][]byte, exons []CodingExon) *Index {
	idx := &Index{
		sequences: sequences,
		exons:     make(map[string][]CodingExon),
	}
	if idx.sequences == nil {
		idx.sequences = make(map[string][]byte)
	}
	for _, e := range exons {
		idx.exons[e.GeneID] = append(idx.exons[e.GeneID], e)
	}
	for _, list := range idx.exons {
		sort.Slice(list, func(i, j int) bool {
			if list[i].Chrom != list[j].Chrom {
				return list[i].Chrom < list[j].Chrom
			}
			if list[i].Start != list[j].Start {
				return list[i].Start < list[j].Start
			}
			return list[i].End < list[j].End
		})
	}
	return idx
}

// BaseAt returns the reference base at a 1-based position.
func (idx *Index) BaseAt(chrom string, pos int64) (byte, error) {
	name := NormalizeChrom(chrom)
	seq, ok := idx.sequences[name]
	if !ok {
		return 0, &ReferenceLookupError{Chrom: chrom, Pos: pos, Msg: "contig not in genome build"}
	}
	if pos < 1 || pos > int64(len(seq)) {
		return 0, &ReferenceLookupError{
			Chrom: chrom,
			Pos:   pos,
			Msg:   fmt.Sprintf("position outside contig of length %d", len(seq)),
		}
	}
	return seq[pos-1], nil
}

// ExonsFor returns the coding exons of a gene ordered by genomic position.
func (idx *Index) ExonsFor(geneID string) []CodingExon {
	return idx.exons[geneID]
}

// HasChrom reports whether the contig is part of the loaded build.
func (idx *Index) HasChrom(chrom string) bool {
	_, ok := idx.sequences[NormalizeChrom(chrom)]
	return ok
}

// GeneCount returns the number of genes with coding exons.
func (idx *Index) GeneCount() int {
	return len(idx.exons)
}

// Chromosomes returns a sorted list of loaded contigs.
func (idx *Index) Chromosomes() []string {
	chroms := make([]string, 0, len(idx.sequences))
	for chrom := range idx.sequences {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	return chroms
}
