package interval

import (
	"fmt"
	"sort"

	"github.com/biogo/store/interval"
	"go.uber.org/zap"

	"github.com/syncount/syncount/internal/genome"
	"github.com/syncount/syncount/internal/track"
)

// ChromSet reports whether a contig is part of the loaded genome build.
type ChromSet interface {
	HasChrom(chrom string) bool
}

// BuildStats summarizes an interval build.
type BuildStats struct {
	Exons    int // CCDS exons offered
	Rejected int // exons with start >= end or on a contig missing from the build
	Genes    int
	// Footprints counts (gene, chromosome) coding footprints.
	Footprints int
	Intervals  map[Category]int
	Bases      map[Category]int64
	// ElementBasesOutsideCDS counts element bases not covered by any footprint.
	ElementBasesOutsideCDS int64
	// CrossGeneOverlapBases counts coding bases claimed by more than one gene.
	// Mutations on those bases match several intervals and are reported by
	// the counter instead of being counted.
	CrossGeneOverlapBases int64
}

// Builder turns CCDS exons and SCE/SAE elements into region intervals.
//
// A base covered by both a constraint and an acceleration element is assigned
// to CONSTRAINT_CDS.
type Builder struct {
	ref    ChromSet
	logger *zap.Logger
}

// NewBuilder creates a builder. ref may be nil to skip the contig check.
func NewBuilder(ref ChromSet) *Builder {
	return &Builder{ref: ref, logger: zap.NewNop()}
}

// SetLogger sets the logger for rejected records.
func (b *Builder) SetLogger(l *zap.Logger) {
	b.logger = l
}

type footprintKey struct {
	gene, chrom string
}

// Build computes the intervals of every gene present in the CCDS input, ordered
// by chromosome, start, gene and category. Within one gene the categories are
// pairwise disjoint and together cover exactly the gene's merged footprint.
func (b *Builder) Build(exons []genome.CodingExon, constraint, acceleration []track.AnnotatedElement) ([]GenomicInterval, BuildStats) {
	stats := BuildStats{
		Exons:     len(exons),
		Intervals: make(map[Category]int),
		Bases:     make(map[Category]int64),
	}

	raw := make(map[footprintKey][]Span)
	genes := make(map[string]bool)
	for _, e := range exons {
		if err := b.checkExon(e); err != nil {
			stats.Rejected++
			b.logger.Warn("rejecting CCDS exon",
				zap.String("gene", e.GeneID),
				zap.String("transcript", e.TranscriptID),
				zap.String("chrom", e.Chrom),
				zap.Int64("start", e.Start),
				zap.Int64("end", e.End),
				zap.Error(err))
			continue
		}
		k := footprintKey{gene: e.GeneID, chrom: e.Chrom}
		raw[k] = append(raw[k], Span{Start: e.Start, End: e.End})
		genes[e.GeneID] = true
	}
	stats.Genes = len(genes)
	stats.Footprints = len(raw)

	constraintTrees := buildElementTrees(constraint)
	accelerationTrees := buildElementTrees(acceleration)

	var out []GenomicInterval
	cdsByChrom := make(map[string][]Span)
	for k, spans := range raw {
		footprint := MergeSpans(spans)
		cdsByChrom[k.chrom] = append(cdsByChrom[k.chrom], footprint...)

		cons := constraintTrees[k.chrom].overlapping(footprint)
		acc := Subtract(accelerationTrees[k.chrom].overlapping(footprint), cons)
		background := Subtract(footprint, MergeSpans(append(append([]Span(nil), cons...), acc...)))

		for _, part := range []struct {
			cat   Category
			spans []Span
		}{
			{BackgroundCDS, background},
			{ConstraintCDS, cons},
			{AccelerationCDS, acc},
		} {
			for _, s := range part.spans {
				if s.Len() <= 0 {
					continue
				}
				out = append(out, GenomicInterval{
					Chrom:    k.chrom,
					Start:    s.Start,
					End:      s.End,
					GeneID:   k.gene,
					Category: part.cat,
				})
				stats.Intervals[part.cat]++
				stats.Bases[part.cat] += s.Len()
			}
		}
	}

	for chrom, spans := range cdsByChrom {
		shared := TotalLength(spans) - TotalLength(MergeSpans(spans))
		if shared > 0 {
			b.logger.Warn("coding bases shared by more than one gene",
				zap.String("chrom", chrom), zap.Int64("bases", shared))
		}
		stats.CrossGeneOverlapBases += shared
	}
	elementChroms := make(map[string]bool)
	for chrom := range constraintTrees {
		elementChroms[chrom] = true
	}
	for chrom := range accelerationTrees {
		elementChroms[chrom] = true
	}
	for chrom := range elementChroms {
		elements := MergeSpans(append(append([]Span(nil), constraintTrees[chrom].all()...), accelerationTrees[chrom].all()...))
		stats.ElementBasesOutsideCDS += TotalLength(Subtract(elements, MergeSpans(cdsByChrom[chrom])))
	}

	SortIntervals(out)
	return out, stats
}

func (b *Builder) checkExon(e genome.CodingExon) error {
	if e.Start >= e.End {
		return fmt.Errorf("start %d not before end %d", e.Start, e.End)
	}
	if e.Start < 0 {
		return fmt.Errorf("negative start %d", e.Start)
	}
	if b.ref != nil && !b.ref.HasChrom(e.Chrom) {
		return fmt.Errorf("chromosome %q not in genome build", e.Chrom)
	}
	return nil
}

// SortIntervals orders intervals by chromosome, start, gene and category.
func SortIntervals(ivs []GenomicInterval) {
	sort.Slice(ivs, func(i, j int) bool {
		a, b := ivs[i], ivs[j]
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.GeneID != b.GeneID {
			return a.GeneID < b.GeneID
		}
		return a.Category < b.Category
	})
}

// elementTree indexes the merged elements of one kind on one chromosome.
type elementTree struct {
	tree   interval.IntTree
	merged []Span
}

// elementSpan is a merged element stored in the tree.
type elementSpan struct {
	uid uintptr
	Span
}

func (e elementSpan) Overlap(b interval.IntRange) bool {
	return int64(b.Start) < e.End && e.Start < int64(b.End)
}
func (e elementSpan) ID() uintptr { return e.uid }
func (e elementSpan) Range() interval.IntRange {
	return interval.IntRange{Start: int(e.Start), End: int(e.End)}
}

// spanQuery finds the tree elements sharing at least one base with a span.
type spanQuery Span

func (q spanQuery) Overlap(b interval.IntRange) bool {
	return int64(b.Start) < q.End && q.Start < int64(b.End)
}

func buildElementTrees(elements []track.AnnotatedElement) map[string]*elementTree {
	byChrom := make(map[string][]Span)
	for _, e := range elements {
		byChrom[e.Chrom] = append(byChrom[e.Chrom], Span{Start: e.Start, End: e.End})
	}

	trees := make(map[string]*elementTree, len(byChrom))
	for chrom, spans := range byChrom {
		t := &elementTree{merged: MergeSpans(spans)}
		for i, s := range t.merged {
			// Merged spans are non-empty, so Insert cannot fail on range checks.
			_ = t.tree.Insert(elementSpan{uid: uintptr(i), Span: s}, true)
		}
		t.tree.AdjustRanges()
		trees[chrom] = t
	}
	return trees
}

// overlapping returns the element bases inside the merged footprint.
func (t *elementTree) overlapping(footprint []Span) []Span {
	if t == nil || len(footprint) == 0 {
		return nil
	}
	var hits []Span
	for _, s := range footprint {
		for _, h := range t.tree.Get(spanQuery(s)) {
			hits = append(hits, h.(elementSpan).Span)
		}
	}
	return Intersect(footprint, MergeSpans(hits))
}

func (t *elementTree) all() []Span {
	if t == nil {
		return nil
	}
	return t.merged
}
