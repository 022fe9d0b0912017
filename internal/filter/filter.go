// Package filter narrows a cleaned trial table to the rows a selection admits.
package filter

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/trialdash/internal/clean"
	"github.com/KaramelBytes/trialdash/internal/dataset"
)

// Bounds of Selection.TopN.
const (
	MinTopN     = 5
	MaxTopN     = 20
	DefaultTopN = 10
)

// DefaultCountryCount is how many countries the default selection admits.
const DefaultCountryCount = 5

// ErrTopN reports a TopN outside [MinTopN, MaxTopN].
var ErrTopN = errors.New("top_n out of range")

// Selection is the user's current filter choice.
type Selection struct {
	Countries Set
	Statuses  Set
	Phases    Set
	TopN      int
}

// Validate checks the TopN bound.
func (s Selection) Validate() error {
	if s.TopN < MinTopN || s.TopN > MaxTopN {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrTopN, s.TopN, MinTopN, MaxTopN)
	}
	return nil
}

// Admits reports whether tr passes all three category predicates.
func (s Selection) Admits(tr clean.Trial) bool {
	return s.Countries.Has(tr.Country) && s.Statuses.Has(tr.Status) && s.Phases.Has(tr.Phases)
}

// Apply returns the rows of t admitted by sel, in table order.
func Apply(t *clean.Table, sel Selection) *View {
	v := &View{src: t}
	if sel.Countries.Len() == 0 || sel.Statuses.Len() == 0 || sel.Phases.Len() == 0 {
		return v
	}
	for i, tr := range t.Trials {
		if sel.Admits(tr) {
			v.idx = append(v.idx, i)
		}
	}
	return v
}

// View is a filtered window over a cleaned table. It borrows the table's rows.
type View struct {
	src *clean.Table
	idx []int
}

// All returns a view admitting every row of t.
func All(t *clean.Table) *View {
	v := &View{src: t, idx: make([]int, len(t.Trials))}
	for i := range v.idx {
		v.idx[i] = i
	}
	return v
}

// Source returns the underlying cleaned table.
func (v *View) Source() *clean.Table { return v.src }

// Len returns the number of admitted rows.
func (v *View) Len() int { return len(v.idx) }

// Trial returns the i-th admitted trial.
func (v *View) Trial(i int) clean.Trial { return v.src.Trials[v.idx[i]] }

// Row returns the i-th admitted row of cleaned cells.
func (v *View) Row(i int) dataset.Row { return v.src.Rows[v.idx[i]] }

// Trials calls fn for each admitted trial in order.
func (v *View) Trials(fn func(i int, tr clean.Trial)) {
	for i, j := range v.idx {
		fn(i, v.src.Trials[j])
	}
}

// Head returns a view of at most the first n admitted rows.
func (v *View) Head(n int) *View {
	if n < 0 {
		n = 0
	}
	if n > len(v.idx) {
		n = len(v.idx)
	}
	return &View{src: v.src, idx: v.idx[:n:n]}
}

// Table materializes the view as a standalone table sharing the column
// schema of the source.
func (v *View) Table() *dataset.Table {
	out := &dataset.Table{
		Name:    v.src.Name,
		Columns: append([]string(nil), v.src.Table.Columns...),
		Rows:    make([]dataset.Row, len(v.idx)),
	}
	for i, j := range v.idx {
		out.Rows[i] = append(dataset.Row(nil), v.src.Rows[j]...)
	}
	return out
}

// Choices are the distinct filter values of a table in first-appearance order.
type Choices struct {
	Countries []string `json:"countries" yaml:"countries"`
	Statuses  []string `json:"statuses" yaml:"statuses"`
	Phases    []string `json:"phases" yaml:"phases"`
}

// Options lists the values each filter can take.
func Options(t *clean.Table) Choices {
	var c Choices
	seenC, seenS, seenP := Set{}, Set{}, Set{}
	add := func(seen Set, list *[]string, v string) {
		if !seen.Has(v) {
			seen[v] = struct{}{}
			*list = append(*list, v)
		}
	}
	for _, tr := range t.Trials {
		add(seenC, &c.Countries, tr.Country)
		add(seenS, &c.Statuses, tr.Status)
		add(seenP, &c.Phases, tr.Phases)
	}
	return c
}

// DefaultSelection admits the first countryCount countries (all when
// countryCount <= 0), every status and every phase.
func DefaultSelection(t *clean.Table, countryCount, topN int) Selection {
	c := Options(t)
	countries := c.Countries
	if countryCount > 0 && countryCount < len(countries) {
		countries = countries[:countryCount]
	}
	if topN == 0 {
		topN = DefaultTopN
	}
	return Selection{
		Countries: NewSet(countries...),
		Statuses:  NewSet(c.Statuses...),
		Phases:    NewSet(c.Phases...),
		TopN:      topN,
	}
}
