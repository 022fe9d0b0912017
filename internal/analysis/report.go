package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/trialdash/internal/filter"
)

// Options controls report building.
type Options struct {
	// TopN limits the country ranking.
	TopN int
	// Bins is the enrollment histogram resolution; 0 means DefaultBins.
	Bins int
	// SampleRows determines how many preview rows to include in the report.
	SampleRows int
}

// DefaultOptions returns the dashboard defaults.
func DefaultOptions() Options {
	return Options{TopN: filter.DefaultTopN, Bins: DefaultBins, SampleRows: 20}
}

// Report bundles every aggregate of one view.
type Report struct {
	Name       string          `json:"name" yaml:"name"`
	Filters    Filters         `json:"filters" yaml:"filters"`
	KPI        KPI             `json:"kpi" yaml:"kpi"`
	Status     []CategoryCount `json:"status" yaml:"status"`
	Phases     []CategoryCount `json:"phases" yaml:"phases"`
	Monthly    Monthly         `json:"monthly" yaml:"monthly"`
	Countries  []CategoryCount `json:"countries" yaml:"countries"`
	Enrollment Histogram       `json:"enrollment" yaml:"enrollment"`
	Columns    []string        `json:"columns" yaml:"columns"`
	Samples    [][]string      `json:"samples" yaml:"samples"`
	Warnings   []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Filters echoes the selection a report was built from.
type Filters struct {
	Countries []string `json:"countries" yaml:"countries"`
	Statuses  []string `json:"statuses" yaml:"statuses"`
	Phases    []string `json:"phases" yaml:"phases"`
	TopN      int      `json:"top_n" yaml:"top_n"`
}

// FiltersOf renders sel with sorted members.
func FiltersOf(sel filter.Selection) Filters {
	return Filters{
		Countries: sel.Countries.Sorted(),
		Statuses:  sel.Statuses.Sorted(),
		Phases:    sel.Phases.Sorted(),
		TopN:      sel.TopN,
	}
}

// Build computes the full report of v.
func Build(v *filter.View, sel filter.Selection, opt Options) *Report {
	topN := sel.TopN
	if topN == 0 {
		topN = opt.TopN
	}
	src := v.Source()
	r := &Report{
		Name:       src.Name,
		Filters:    FiltersOf(sel),
		KPI:        Summarize(v),
		Status:     StatusDistribution(v),
		Phases:     PhaseDistribution(v),
		Monthly:    MonthlyCounts(v),
		Countries:  TopCountries(v, topN),
		Enrollment: EnrollmentHistogram(v, opt.Bins),
		Columns:    append([]string(nil), src.Table.Columns...),
	}
	head := v.Head(opt.SampleRows)
	for i := 0; i < head.Len(); i++ {
		r.Samples = append(r.Samples, head.Row(i).Strings())
	}
	for _, w := range src.Warnings {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", w.Column, w.Detail))
	}
	return r
}

// Markdown renders the report as bracketed plain-text sections.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Filters: countries=%s; statuses=%s; phases=%s; top_n=%d\n\n",
		joinOrNone(r.Filters.Countries), joinOrNone(r.Filters.Statuses), joinOrNone(r.Filters.Phases), r.Filters.TopN))

	b.WriteString("[KPIS]\n")
	b.WriteString(fmt.Sprintf("- Total Trials: %d\n", r.KPI.Trials))
	b.WriteString(fmt.Sprintf("- Countries: %d\n", r.KPI.Countries))
	if r.KPI.HasMedian {
		b.WriteString(fmt.Sprintf("- Median Enrollment: %d\n", int(math.Trunc(r.KPI.MedianEnrollment))))
	} else {
		b.WriteString("- Median Enrollment: n/a\n")
	}
	b.WriteString(fmt.Sprintf("- Completed Trials: %d\n", r.KPI.Completed))

	writeCounts(&b, "STATUS DISTRIBUTION", r.Status)
	writeCounts(&b, "PHASE DISTRIBUTION", r.Phases)

	b.WriteString("\n[TRIALS BY START MONTH]\n")
	for _, m := range r.Monthly.Months {
		b.WriteString(fmt.Sprintf("- %s: %d\n", m.Month, m.Count))
	}
	if r.Monthly.Unknown > 0 {
		b.WriteString(fmt.Sprintf("- unknown: %d\n", r.Monthly.Unknown))
	}

	writeCounts(&b, fmt.Sprintf("TOP %d COUNTRIES", r.Filters.TopN), r.Countries)

	if n := len(r.Enrollment.Counts); n > 0 {
		b.WriteString("\n[ENROLLMENT]\n")
		b.WriteString(fmt.Sprintf("Range: %.4g to %.4g in %d bins of width %.4g\n",
			r.Enrollment.Edges[0], r.Enrollment.Edges[n], n, r.Enrollment.Edges[1]-r.Enrollment.Edges[0]))
		peak := 0
		for i, c := range r.Enrollment.Counts {
			if c > r.Enrollment.Counts[peak] {
				peak = i
			}
		}
		b.WriteString(fmt.Sprintf("Fullest bin: [%.4g, %.4g) with %d trials\n",
			r.Enrollment.Edges[peak], r.Enrollment.Edges[peak+1], r.Enrollment.Counts[peak]))
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, c := range r.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c))
		}
		b.WriteString(" |\n| ")
		for i := range r.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Columns {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeCounts(b *strings.Builder, title string, counts []CategoryCount) {
	b.WriteString(fmt.Sprintf("\n[%s]\n", title))
	for _, c := range counts {
		b.WriteString(fmt.Sprintf("- %s: %d\n", safeVal(c.Value), c.Count))
	}
}

func joinOrNone(vals []string) string {
	if len(vals) == 0 {
		return "(none)"
	}
	return strings.Join(vals, ", ")
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
