package clean

import (
	"time"

	"github.com/KaramelBytes/trialdash/internal/dataset"
)

// DateState distinguishes parsed, absent and unparseable start dates.
type DateState int

const (
	DateOK DateState = iota
	DateAbsent
	DateUnparseable
)

func (s DateState) String() string {
	switch s {
	case DateOK:
		return "ok"
	case DateAbsent:
		return "absent"
	case DateUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// StartDate is a start date together with its parse state. Time is zero
// unless State is DateOK.
type StartDate struct {
	Time  time.Time
	State DateState
}

// Valid reports whether the date parsed.
func (d StartDate) Valid() bool { return d.State == DateOK }

// Trial is the typed projection of one cleaned row.
type Trial struct {
	Status     string
	Phases     string
	Locations  string
	Country    string
	Enrollment float64
	Start      StartDate
}

// Warning records a data-quality substitution. Warnings never abort cleaning.
type Warning struct {
	Column string
	Kind   string
	Count  int
	Detail string
}

// Warning kinds.
const (
	WarnSentinelFill    = "sentinel_fill"
	WarnMedianFill      = "median_fill"
	WarnMedianFallback  = "median_fallback"
	WarnNonNumeric      = "non_numeric"
	WarnUnparseableDate = "unparseable_date"
	WarnAbsentDate      = "absent_date"
)

// Table is a cleaned trial table: the normalized cells (with the derived
// Country column) plus typed trials aligned row for row. It is not modified
// after Clean returns.
type Table struct {
	*dataset.Table
	Trials           []Trial
	Schema           Columns
	EnrollmentMedian float64
	Warnings         []Warning
}
