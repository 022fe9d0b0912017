// Package export writes a filtered view out as a download: a CSV file, a
// database table or an S3 object.
package export

import (
	"context"

	"github.com/KaramelBytes/trialdash/internal/analysis"
	"github.com/KaramelBytes/trialdash/internal/clean"
	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/KaramelBytes/trialdash/internal/filter"
)

// StartMonthColumn is the derived month bucket column of a download.
const StartMonthColumn = "Start Month"

// DefaultFileName is the suggested download file name.
const DefaultFileName = "cleaned_covid_trials.csv"

// Options shapes the download table.
type Options struct {
	IncludeStartMonth bool
}

// DefaultOptions includes the month column.
func DefaultOptions() Options { return Options{IncludeStartMonth: true} }

// Sink receives a download table.
type Sink interface {
	Write(ctx context.Context, t *dataset.Table) error
}

// Rows builds the download table of v: every cleaned column including
// Country, plus Start Month when enabled. Rows without a parsed start date
// get an empty month.
func Rows(v *filter.View, opt Options) *dataset.Table {
	t := v.Table()
	if !opt.IncludeStartMonth {
		return t
	}
	months := make([]dataset.Field, t.Len())
	v.Trials(func(i int, tr clean.Trial) {
		if m, ok := analysis.MonthOf(tr.Start); ok {
			months[i] = dataset.Present(m)
		} else {
			months[i] = dataset.Absent()
		}
	})
	t.SetColumn(StartMonthColumn, months)
	return t
}
