package analysis

import (
	"sort"

	"github.com/KaramelBytes/trialdash/internal/clean"
	"github.com/KaramelBytes/trialdash/internal/filter"
)

// CategoryCount is one bar of a frequency chart.
type CategoryCount struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// Tally counts key(trial) over v, returning values in first-appearance order.
func Tally(v *filter.View, key func(clean.Trial) string) []CategoryCount {
	pos := map[string]int{}
	var out []CategoryCount
	v.Trials(func(_ int, tr clean.Trial) {
		k := key(tr)
		i, ok := pos[k]
		if !ok {
			i = len(out)
			pos[k] = i
			out = append(out, CategoryCount{Value: k})
		}
		out[i].Count++
	})
	return out
}

// Ranked returns a copy of counts sorted by descending count. Equal counts
// keep their input order.
func Ranked(counts []CategoryCount) []CategoryCount {
	out := append([]CategoryCount(nil), counts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func asMap(counts []CategoryCount) map[string]int {
	m := make(map[string]int, len(counts))
	for _, c := range counts {
		m[c.Value] = c.Count
	}
	return m
}

func status(tr clean.Trial) string  { return tr.Status }
func phases(tr clean.Trial) string  { return tr.Phases }
func country(tr clean.Trial) string { return tr.Country }

// StatusCounts maps each Status in v to its row count.
func StatusCounts(v *filter.View) map[string]int { return asMap(Tally(v, status)) }

// PhaseCounts maps each Phases value in v to its row count.
func PhaseCounts(v *filter.View) map[string]int { return asMap(Tally(v, phases)) }

// StatusDistribution is StatusCounts ranked for display.
func StatusDistribution(v *filter.View) []CategoryCount { return Ranked(Tally(v, status)) }

// PhaseDistribution is PhaseCounts ranked for display.
func PhaseDistribution(v *filter.View) []CategoryCount { return Ranked(Tally(v, phases)) }

// TopCountries returns at most n countries by descending trial count. Ties
// are broken by first appearance in v.
func TopCountries(v *filter.View, n int) []CategoryCount {
	ranked := Ranked(Tally(v, country))
	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
