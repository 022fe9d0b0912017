package analysis

import (
	"sort"
	"time"

	"github.com/KaramelBytes/trialdash/internal/clean"
	"github.com/KaramelBytes/trialdash/internal/filter"
)

// MonthLayout formats a month bucket.
const MonthLayout = "2006-01"

// MonthCount is the number of trials starting in one calendar month.
type MonthCount struct {
	Month string `json:"month" yaml:"month"`
	Count int    `json:"count" yaml:"count"`
}

// Monthly is the start-date time series of a view.
type Monthly struct {
	Months []MonthCount `json:"months" yaml:"months"`
	// Unknown counts rows whose start date is absent or unparseable.
	Unknown int `json:"unknown" yaml:"unknown"`
}

// Total sums the month buckets.
func (m Monthly) Total() int {
	n := 0
	for _, c := range m.Months {
		n += c.Count
	}
	return n
}

// MonthOf returns the bucket key of a start date and whether it has one.
func MonthOf(d clean.StartDate) (string, bool) {
	if !d.Valid() {
		return "", false
	}
	return d.Time.Format(MonthLayout), true
}

// MonthlyCounts buckets v by start month in ascending order. Rows without a
// parsed start date only contribute to Unknown.
func MonthlyCounts(v *filter.View) Monthly {
	type key struct {
		y int
		m time.Month
	}
	counts := map[key]int{}
	var out Monthly
	v.Trials(func(_ int, tr clean.Trial) {
		if !tr.Start.Valid() {
			out.Unknown++
			return
		}
		counts[key{tr.Start.Time.Year(), tr.Start.Time.Month()}]++
	})
	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].y != keys[j].y {
			return keys[i].y < keys[j].y
		}
		return keys[i].m < keys[j].m
	})
	out.Months = make([]MonthCount, len(keys))
	for i, k := range keys {
		out.Months[i] = MonthCount{
			Month: time.Date(k.y, k.m, 1, 0, 0, 0, 0, time.UTC).Format(MonthLayout),
			Count: counts[k],
		}
	}
	return out
}
