// Package clean turns a raw trial table into the normalized form the filters
// and aggregators work on: dropped sparse columns, no absent categorical or
// enrollment values, parsed start dates and a derived Country column.
package clean

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/KaramelBytes/trialdash/internal/stats"
)

// Kind is the inferred type of a column.
type Kind int

const (
	Categorical Kind = iota
	Numeric
	Date
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Date:
		return "date"
	default:
		return "categorical"
	}
}

// Clean applies the cleaning steps to a copy of raw. raw is left untouched.
func Clean(raw *dataset.Table, opt Options) (*Table, error) {
	cols := opt.Columns
	if cols == (Columns{}) {
		cols = DefaultColumns()
	}
	tbl := raw.DropColumns(opt.DropColumns...)
	for _, name := range []string{cols.Status, cols.Phases, cols.Locations, cols.Enrollment} {
		if !tbl.Has(name) {
			return nil, &dataset.FormatError{Path: raw.Name, Err: fmt.Errorf("required column %q not found", name)}
		}
	}
	out := &Table{Table: tbl, Schema: cols}

	kinds := Kinds(tbl, cols)
	for _, name := range tbl.Columns {
		if kinds[name] != Categorical {
			continue
		}
		if n := fillSentinel(tbl, name); n > 0 {
			out.Warnings = append(out.Warnings, Warning{
				Column: name, Kind: WarnSentinelFill, Count: n,
				Detail: fmt.Sprintf("%d absent values replaced with %q", n, Sentinel(name)),
			})
		}
	}

	enroll, warns := fillEnrollment(tbl, cols.Enrollment, opt.MedianFallback)
	out.EnrollmentMedian = enroll.median
	out.Warnings = append(out.Warnings, warns...)

	starts := make([]StartDate, tbl.Len())
	if tbl.Has(cols.StartDate) {
		fields := tbl.Column(cols.StartDate)
		var absent, bad int
		for i, f := range fields {
			starts[i], fields[i] = parseStartDate(f)
			switch starts[i].State {
			case DateAbsent:
				absent++
			case DateUnparseable:
				bad++
			}
		}
		tbl.SetColumn(cols.StartDate, fields)
		if bad > 0 {
			out.Warnings = append(out.Warnings, Warning{
				Column: cols.StartDate, Kind: WarnUnparseableDate, Count: bad,
				Detail: fmt.Sprintf("%d values could not be parsed as dates", bad),
			})
		}
		if absent > 0 {
			out.Warnings = append(out.Warnings, Warning{
				Column: cols.StartDate, Kind: WarnAbsentDate, Count: absent,
				Detail: fmt.Sprintf("%d rows have no start date", absent),
			})
		}
	} else {
		for i := range starts {
			starts[i] = StartDate{State: DateAbsent}
		}
	}

	locIdx := tbl.Index(cols.Locations)
	countries := make([]dataset.Field, tbl.Len())
	for i, r := range tbl.Rows {
		countries[i] = dataset.Present(DeriveCountry(r[locIdx], Sentinel(cols.Locations)))
	}
	tbl.SetColumn(cols.Country, countries)

	statusIdx, phaseIdx := tbl.Index(cols.Status), tbl.Index(cols.Phases)
	out.Trials = make([]Trial, tbl.Len())
	for i, r := range tbl.Rows {
		out.Trials[i] = Trial{
			Status:     r[statusIdx].Text,
			Phases:     r[phaseIdx].Text,
			Locations:  r[locIdx].Text,
			Country:    countries[i].Text,
			Enrollment: enroll.values[i],
			Start:      starts[i],
		}
	}
	return out, nil
}

// Kinds classifies every column of t. Enrollment is always numeric and the
// start date column is always a date column.
func Kinds(t *dataset.Table, cols Columns) map[string]Kind {
	out := make(map[string]Kind, len(t.Columns))
	for j, name := range t.Columns {
		switch name {
		case cols.Enrollment:
			out[name] = Numeric
			continue
		case cols.StartDate:
			out[name] = Date
			continue
		}
		present, numeric := 0, true
		for _, r := range t.Rows {
			if j >= len(r) || r[j].Null {
				continue
			}
			present++
			if _, ok := parseNumber(r[j].Text); !ok {
				numeric = false
				break
			}
		}
		if present > 0 && numeric {
			out[name] = Numeric
		} else {
			out[name] = Categorical
		}
	}
	return out
}

func fillSentinel(t *dataset.Table, name string) int {
	j := t.Index(name)
	sentinel := dataset.Present(Sentinel(name))
	n := 0
	for _, r := range t.Rows {
		if r[j].Null {
			r[j] = sentinel
			n++
		}
	}
	return n
}

type enrollment struct {
	values []float64
	median float64
}

func fillEnrollment(t *dataset.Table, name string, fallback float64) (enrollment, []Warning) {
	j := t.Index(name)
	vals := make([]float64, t.Len())
	ok := make([]bool, t.Len())
	present := make([]float64, 0, t.Len())
	var absent, junk int
	for i, r := range t.Rows {
		if r[j].Null {
			absent++
			continue
		}
		v, good := parseNumber(r[j].Text)
		if !good {
			junk++
			continue
		}
		vals[i], ok[i] = v, true
		present = append(present, v)
	}

	var warns []Warning
	median, has := stats.Median(present)
	if !has {
		median = fallback
		if t.Len() > 0 {
			warns = append(warns, Warning{
				Column: name, Kind: WarnMedianFallback, Count: t.Len(),
				Detail: fmt.Sprintf("no numeric values; using fallback %s", formatNumber(fallback)),
			})
		}
	}
	if junk > 0 {
		warns = append(warns, Warning{
			Column: name, Kind: WarnNonNumeric, Count: junk,
			Detail: fmt.Sprintf("%d non-numeric values treated as absent", junk),
		})
	}
	if filled := absent + junk; filled > 0 && has {
		warns = append(warns, Warning{
			Column: name, Kind: WarnMedianFill, Count: filled,
			Detail: fmt.Sprintf("%d values replaced with median %s", filled, formatNumber(median)),
		})
	}

	for i, r := range t.Rows {
		if !ok[i] {
			vals[i] = median
		}
		r[j] = dataset.Present(formatNumber(vals[i]))
	}
	return enrollment{values: vals, median: median}, warns
}

// DeriveCountry returns the trimmed last comma-separated segment of a
// Locations value, or MissingCountry when there is none. A location equal to
// sentinel counts as absent.
func DeriveCountry(loc dataset.Field, sentinel string) string {
	if loc.Null || loc.Text == sentinel {
		return MissingCountry
	}
	seg := loc.Text
	if i := strings.LastIndex(seg, ","); i >= 0 {
		seg = seg[i+1:]
	}
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return MissingCountry
	}
	return seg
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
