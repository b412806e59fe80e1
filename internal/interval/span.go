// Package interval builds the normalized, gene-tagged region intervals and
// answers point-in-interval lookups against them.
package interval

import "sort"

// Span is a 0-based half-open range on one chromosome.
type Span struct {
	Start int64
	End   int64
}

// Len returns the number of bases in the span.
func (s Span) Len() int64 {
	return s.End - s.Start
}

// MergeSpans returns the minimal set of spans covering the input, sorted by
// start. Overlapping and adjacent spans are joined; empty spans are dropped.
func MergeSpans(spans []Span) []Span {
	sorted := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.End > s.Start {
			sorted = append(sorted, s)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// Intersect returns the bases covered by both a and b. Both inputs must be
// merged (sorted and disjoint); so is the result.
func Intersect(a, b []Span) []Span {
	var out []Span
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := max(a[i].Start, b[j].Start)
		end := min(a[i].End, b[j].End)
		if start < end {
			out = append(out, Span{Start: start, End: end})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}

// Subtract returns the bases of a not covered by b. Both inputs must be merged.
func Subtract(a, b []Span) []Span {
	var out []Span
	j := 0
	for _, s := range a {
		cur := s.Start
		for j < len(b) && b[j].End <= cur {
			j++
		}
		for k := j; k < len(b) && b[k].Start < s.End; k++ {
			if b[k].Start > cur {
				out = append(out, Span{Start: cur, End: b[k].Start})
			}
			if b[k].End > cur {
				cur = b[k].End
			}
		}
		if cur < s.End {
			out = append(out, Span{Start: cur, End: s.End})
		}
	}
	return out
}

// TotalLength returns the summed length of the spans.
func TotalLength(spans []Span) int64 {
	var n int64
	for _, s := range spans {
		n += s.Len()
	}
	return n
}
