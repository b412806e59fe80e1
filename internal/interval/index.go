package interval

import "sort"

// Index answers point-in-interval queries in O(log n + k) using one
// start-sorted slice per chromosome. It is read-only after construction and
// safe for concurrent use.
type Index struct {
	chroms map[string]*chromIndex
	size   int
}

type chromIndex struct {
	intervals []GenomicInterval
	maxEnd    []int64 // maxEnd[i] = max(End) for intervals[:i+1]
}

// NewIndex builds a lookup index over the intervals.
func NewIndex(ivs []GenomicInterval) *Index {
	byChrom := make(map[string][]GenomicInterval)
	for _, iv := range ivs {
		byChrom[iv.Chrom] = append(byChrom[iv.Chrom], iv)
	}

	idx := &Index{chroms: make(map[string]*chromIndex, len(byChrom)), size: len(ivs)}
	for chrom, list := range byChrom {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Start < list[j].Start
		})

		// Prefix max of ends lets a backwards scan stop early.
		maxEnd := make([]int64, len(list))
		maxEnd[0] = list[0].End
		for i := 1; i < len(list); i++ {
			maxEnd[i] = max(maxEnd[i-1], list[i].End)
		}
		idx.chroms[chrom] = &chromIndex{intervals: list, maxEnd: maxEnd}
	}
	return idx
}

// Find returns every interval on chrom containing the 0-based position.
func (idx *Index) Find(chrom string, pos int64) []GenomicInterval {
	c, ok := idx.chroms[chrom]
	if !ok {
		return nil
	}

	// hi is the first index with start > pos; candidates are [0, hi).
	hi := sort.Search(len(c.intervals), func(i int) bool {
		return c.intervals[i].Start > pos
	})

	var result []GenomicInterval
	for i := hi - 1; i >= 0; i-- {
		// No interval in 0..i reaches pos once their max end is at or before it.
		if c.maxEnd[i] <= pos {
			break
		}
		if c.intervals[i].End > pos {
			result = append(result, c.intervals[i])
		}
	}
	return result
}

// Len returns the number of indexed intervals.
func (idx *Index) Len() int {
	return idx.size
}
