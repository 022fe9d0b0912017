package clean

// Columns names the source columns the pipeline reads.
type Columns struct {
	Status     string
	Phases     string
	Locations  string
	Enrollment string
	StartDate  string
	// Country is the derived column appended by Clean.
	Country string
}

// DefaultColumns matches the ClinicalTrials.gov COVID-19 export.
func DefaultColumns() Columns {
	return Columns{
		Status:     "Status",
		Phases:     "Phases",
		Locations:  "Locations",
		Enrollment: "Enrollment",
		StartDate:  "Start Date",
		Country:    "Country",
	}
}

// Options controls cleaning.
type Options struct {
	Columns Columns
	// DropColumns are removed before anything else; missing ones are ignored.
	DropColumns []string
	// MedianFallback replaces absent Enrollment values when no value is present.
	MedianFallback float64
}

// DefaultDropColumns are sparse columns of the source export.
var DefaultDropColumns = []string{"Study Documents", "Results First Posted"}

// DefaultOptions returns the cleaning policy of the dashboard.
func DefaultOptions() Options {
	return Options{
		Columns:     DefaultColumns(),
		DropColumns: append([]string(nil), DefaultDropColumns...),
	}
}

// MissingCountry is the Country value for rows without a usable location.
const MissingCountry = "Missing"

// Sentinel returns the placeholder for an absent value of column name.
func Sentinel(name string) string { return "Missing_" + name }
