package analysis

import (
	"github.com/KaramelBytes/trialdash/internal/clean"
	"github.com/KaramelBytes/trialdash/internal/filter"
	"github.com/KaramelBytes/trialdash/internal/stats"
)

// DefaultBins is the enrollment histogram resolution.
const DefaultBins = 100

// Histogram holds len(Counts)+1 ascending edges. Bin i covers
// [Edges[i], Edges[i+1]); the last bin also includes its upper edge.
type Histogram struct {
	Edges  []float64 `json:"edges" yaml:"edges"`
	Counts []int     `json:"counts" yaml:"counts"`
}

// Total sums the bin counts.
func (h Histogram) Total() int {
	n := 0
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// EnrollmentHistogram bins the enrollment of v into equal-width bins over
// the observed range. An empty view yields no bins; a single distinct value
// is centred in a range of width one.
func EnrollmentHistogram(v *filter.View, bins int) Histogram {
	if bins <= 0 {
		bins = DefaultBins
	}
	vals := make([]float64, 0, v.Len())
	v.Trials(func(_ int, tr clean.Trial) { vals = append(vals, tr.Enrollment) })
	lo, hi, ok := stats.MinMax(vals)
	if !ok {
		return Histogram{}
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	width := (hi - lo) / float64(bins)
	h := Histogram{Edges: make([]float64, bins+1), Counts: make([]int, bins)}
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*width
	}
	h.Edges[bins] = hi
	for _, x := range vals {
		i := int((x - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		// Settle rounding against the emitted edges.
		for i+1 < bins && x >= h.Edges[i+1] {
			i++
		}
		for i > 0 && x < h.Edges[i] {
			i--
		}
		h.Counts[i]++
	}
	return h
}
