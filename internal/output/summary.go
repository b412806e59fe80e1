package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/syncount/syncount/internal/count"
	"github.com/syncount/syncount/internal/interval"
)

// WriteRunSummary prints the run-wide breakdown for a terminal. Every dropped
// record shows up in one of the lines.
func WriteRunSummary(w io.Writer, s count.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	d := s.Diagnostics

	fmt.Fprintf(tw, "Run Summary:\n")
	fmt.Fprintf(tw, "  Files processed:\t%d\n", s.Files)
	fmt.Fprintf(tw, "  Files failed:\t%d\n", s.FilesFailed)
	if s.Missing > 0 {
		fmt.Fprintf(tw, "  Files missing:\t%d\n", s.Missing)
	}
	fmt.Fprintf(tw, "  Records seen:\t%d\n", d.Total())
	fmt.Fprintf(tw, "  Accepted:\t%d\t(%.1f%%)\n", d.Accepted, percent(d.Accepted, d.Total()))
	fmt.Fprintf(tw, "  Allele mismatch:\t%d\n", d.AlleleMismatch)
	fmt.Fprintf(tw, "  Class filtered:\t%d\n", d.ClassFiltered)
	fmt.Fprintf(tw, "  Malformed:\t%d\n", d.Malformed)
	fmt.Fprintf(tw, "  Reference error:\t%d\n", d.ReferenceError)
	fmt.Fprintf(tw, "  Counted:\t%d\n", s.Counted)
	fmt.Fprintf(tw, "  Unmatched:\t%d\n", s.Unmatched)
	fmt.Fprintf(tw, "  Conflicts:\t%d\n", s.Conflicts)
	return tw.Flush()
}

// WriteBuildSummary prints interval counts and bases per region category.
func WriteBuildSummary(w io.Writer, s interval.BuildStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Interval Summary:\n")
	fmt.Fprintf(tw, "  Exons:\t%d\n", s.Exons)
	fmt.Fprintf(tw, "  Rejected exons:\t%d\n", s.Rejected)
	fmt.Fprintf(tw, "  Genes:\t%d\n", s.Genes)

	var total int64
	for _, c := range interval.Categories {
		total += s.Bases[c]
	}
	for _, c := range interval.Categories {
		fmt.Fprintf(tw, "  %s:\t%d intervals\t%d bp\t(%.1f%%)\n", c, s.Intervals[c], s.Bases[c], percent(s.Bases[c], total))
	}
	fmt.Fprintf(tw, "  Element bases outside CDS:\t%d\n", s.ElementBasesOutsideCDS)
	fmt.Fprintf(tw, "  Cross-gene overlap bases:\t%d\n", s.CrossGeneOverlapBases)
	return tw.Flush()
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
