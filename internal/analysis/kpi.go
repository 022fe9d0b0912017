// Package analysis computes the dashboard aggregates of a filtered view.
// Every function is pure and safe on an empty view.
package analysis

import (
	"github.com/KaramelBytes/trialdash/internal/clean"
	"github.com/KaramelBytes/trialdash/internal/filter"
	"github.com/KaramelBytes/trialdash/internal/stats"
)

// CompletedStatus is the Status value counted as a completed trial.
const CompletedStatus = "Completed"

// KPI is the headline summary of a view.
type KPI struct {
	Trials    int `json:"trials" yaml:"trials"`
	Countries int `json:"countries" yaml:"countries"`
	// MedianEnrollment is computed over the view, not the whole table.
	MedianEnrollment float64 `json:"median_enrollment" yaml:"median_enrollment"`
	HasMedian        bool    `json:"has_median" yaml:"has_median"`
	Completed        int     `json:"completed" yaml:"completed"`
}

// Summarize computes the KPIs of v.
func Summarize(v *filter.View) KPI {
	k := KPI{Trials: v.Len()}
	countries := filter.Set{}
	enroll := make([]float64, 0, v.Len())
	v.Trials(func(_ int, tr clean.Trial) {
		countries[tr.Country] = struct{}{}
		enroll = append(enroll, tr.Enrollment)
		if tr.Status == CompletedStatus {
			k.Completed++
		}
	})
	k.Countries = countries.Len()
	k.MedianEnrollment, k.HasMedian = stats.Median(enroll)
	return k
}
