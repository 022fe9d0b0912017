package clean

import (
	"strings"
	"time"

	"github.com/KaramelBytes/trialdash/internal/dataset"
)

// DateLayout is the canonical form parsed start dates are rewritten to.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order; numeric forms are month-first.
var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"January 2, 2006",
	"January 2006",
	"Jan 2, 2006",
	"Jan 2006",
	"1/2/2006",
	"01/02/2006",
	"2006/01/02",
	"2006-01",
	"2 January 2006",
}

// ParseDate parses s with the known layouts. Time of day and zone are dropped.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func parseStartDate(f dataset.Field) (StartDate, dataset.Field) {
	if f.Null {
		return StartDate{State: DateAbsent}, f
	}
	ts, ok := ParseDate(f.Text)
	if !ok {
		return StartDate{State: DateUnparseable}, f
	}
	return StartDate{Time: ts, State: DateOK}, dataset.Present(ts.Format(DateLayout))
}
