package clean

import (
	"testing"
	"time"

	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	p = dataset.Present
	a = dataset.Absent
)

func rawTrials() *dataset.Table {
	return &dataset.Table{
		Name:    "trials.csv",
		Columns: []string{"Status", "Phases", "Enrollment", "Start Date", "Locations", "Study Documents", "Conditions"},
		Rows: []dataset.Row{
			{p("Completed"), p("Phase 2"), p("10"), p("March 2, 2020"), p("Boston, MA, United States"), a(), p("COVID-19")},
			{p("Recruiting"), a(), p("20"), p("2020-04-15"), p("Delhi, India"), p("doc"), a()},
			{a(), p("Phase 3"), a(), a(), a(), a(), p("COVID")},
			{p("Completed"), p("Phase 1"), p("30"), p("sometime"), p("Lab, "), a(), p("COVID")},
		},
	}
}

func TestClean(t *testing.T) {
	raw := rawTrials()
	before := raw.Clone()

	out, err := Clean(raw, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, before, raw, "input must not change")

	assert.Equal(t, []string{"Status", "Phases", "Enrollment", "Start Date", "Locations", "Conditions", "Country"}, out.Columns)
	require.Len(t, out.Trials, 4)

	t.Run("sentinel fill", func(t *testing.T) {
		assert.Equal(t, "Missing_Phases", out.Value(1, "Phases").Text)
		assert.Equal(t, "Missing_Status", out.Value(2, "Status").Text)
		assert.Equal(t, "Missing_Conditions", out.Value(1, "Conditions").Text)
		assert.Equal(t, "Missing_Locations", out.Value(2, "Locations").Text)
		for _, r := range out.Rows {
			for j, f := range r {
				if out.Table.Columns[j] != "Start Date" {
					assert.False(t, f.Null, "column %s", out.Table.Columns[j])
				}
			}
		}
	})

	t.Run("enrollment median", func(t *testing.T) {
		assert.Equal(t, 20.0, out.EnrollmentMedian)
		got := []float64{}
		for _, tr := range out.Trials {
			got = append(got, tr.Enrollment)
		}
		assert.Equal(t, []float64{10, 20, 20, 30}, got)
		assert.Equal(t, "20", out.Value(2, "Enrollment").Text)
	})

	t.Run("start dates", func(t *testing.T) {
		assert.Equal(t, DateOK, out.Trials[0].Start.State)
		assert.Equal(t, time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC), out.Trials[0].Start.Time)
		assert.Equal(t, "2020-03-02", out.Value(0, "Start Date").Text)
		assert.Equal(t, DateAbsent, out.Trials[2].Start.State)
		assert.True(t, out.Value(2, "Start Date").Null)
		assert.Equal(t, DateUnparseable, out.Trials[3].Start.State)
		assert.Equal(t, "sometime", out.Value(3, "Start Date").Text)
	})

	t.Run("country", func(t *testing.T) {
		want := []string{"United States", "India", "Missing", "Missing"}
		for i, tr := range out.Trials {
			assert.Equal(t, want[i], tr.Country)
			assert.Equal(t, want[i], out.Value(i, "Country").Text)
		}
	})

	t.Run("warnings", func(t *testing.T) {
		kinds := map[string]int{}
		for _, w := range out.Warnings {
			kinds[w.Column+"/"+w.Kind] = w.Count
		}
		assert.Equal(t, 1, kinds["Phases/"+WarnSentinelFill])
		assert.Equal(t, 1, kinds["Enrollment/"+WarnMedianFill])
		assert.Equal(t, 1, kinds["Start Date/"+WarnUnparseableDate])
		assert.Equal(t, 1, kinds["Start Date/"+WarnAbsentDate])
	})
}

func TestCleanIsIdempotent(t *testing.T) {
	once, err := Clean(rawTrials(), DefaultOptions())
	require.NoError(t, err)
	twice, err := Clean(once.Table, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, once.Table, twice.Table)
	assert.Equal(t, once.Trials, twice.Trials)
	for _, w := range twice.Warnings {
		assert.NotEqual(t, WarnSentinelFill, w.Kind)
		assert.NotEqual(t, WarnMedianFill, w.Kind)
	}
}

func TestCleanEnrollmentEdgeCases(t *testing.T) {
	build := func(vals ...dataset.Field) *dataset.Table {
		tbl := &dataset.Table{Columns: []string{"Status", "Phases", "Locations", "Enrollment"}}
		for _, v := range vals {
			tbl.Rows = append(tbl.Rows, dataset.Row{p("Completed"), p("Phase 1"), p("US"), v})
		}
		return tbl
	}

	t.Run("all absent uses fallback", func(t *testing.T) {
		opt := DefaultOptions()
		opt.MedianFallback = 7
		out, err := Clean(build(a(), a()), opt)
		require.NoError(t, err)
		assert.Equal(t, 7.0, out.Trials[0].Enrollment)
		assert.Equal(t, "7", out.Value(1, "Enrollment").Text)
		require.NotEmpty(t, out.Warnings)
		assert.Equal(t, WarnMedianFallback, out.Warnings[0].Kind)
	})

	t.Run("non numeric treated as absent", func(t *testing.T) {
		out, err := Clean(build(p("4"), p("many"), p("8"), p("Inf")), DefaultOptions())
		require.NoError(t, err)
		got := []float64{}
		for _, tr := range out.Trials {
			got = append(got, tr.Enrollment)
		}
		assert.Equal(t, []float64{4, 6, 8, 6}, got)
	})

	t.Run("decimal values", func(t *testing.T) {
		out, err := Clean(build(p("1.50"), p("2")), DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "1.5", out.Value(0, "Enrollment").Text)
	})
}

func TestCleanRequiresColumns(t *testing.T) {
	tbl := &dataset.Table{Name: "x.csv", Columns: []string{"Status", "Phases", "Enrollment"}}
	_, err := Clean(tbl, DefaultOptions())
	var fmtErr *dataset.FormatError
	require.ErrorAs(t, err, &fmtErr)
	assert.Contains(t, err.Error(), `"Locations"`)
}

func TestCleanCustomColumns(t *testing.T) {
	tbl := &dataset.Table{
		Columns: []string{"state", "phase", "sites", "n"},
		Rows:    []dataset.Row{{p("Completed"), p("Phase 1"), p("Rome, Italy"), p("3")}},
	}
	opt := DefaultOptions()
	opt.Columns = Columns{Status: "state", Phases: "phase", Locations: "sites", Enrollment: "n", StartDate: "start", Country: "nation"}
	out, err := Clean(tbl, opt)
	require.NoError(t, err)
	assert.Equal(t, "Italy", out.Value(0, "nation").Text)
	assert.Equal(t, DateAbsent, out.Trials[0].Start.State)
}

func TestKinds(t *testing.T) {
	tbl := &dataset.Table{
		Columns: []string{"Enrollment", "Start Date", "Score", "Empty", "Mixed"},
		Rows: []dataset.Row{
			{p("x"), p("2020-01-01"), p("1.5"), a(), p("1")},
			{a(), a(), a(), a(), p("b")},
		},
	}
	kinds := Kinds(tbl, DefaultColumns())
	assert.Equal(t, Numeric, kinds["Enrollment"])
	assert.Equal(t, Date, kinds["Start Date"])
	assert.Equal(t, Numeric, kinds["Score"])
	assert.Equal(t, Categorical, kinds["Empty"])
	assert.Equal(t, Categorical, kinds["Mixed"])
}

func TestDeriveCountry(t *testing.T) {
	tests := []struct {
		in   dataset.Field
		want string
	}{
		{p("Boston, MA, United States"), "United States"},
		{p("France"), "France"},
		{p("  Lyon ,  France  "), "France"},
		{p("Somewhere,"), "Missing"},
		{p("Missing_Locations"), "Missing"},
		{a(), "Missing"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveCountry(tt.in, "Missing_Locations"), "%+v", tt.in)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2020-04-15", "2020-04-15", true},
		{"2020-04-15 10:30:00", "2020-04-15", true},
		{"2020-04-15T10:30:00Z", "2020-04-15", true},
		{"April 15, 2020", "2020-04-15", true},
		{"April 2020", "2020-04-01", true},
		{"4/15/2020", "2020-04-15", true},
		{"2020/04/15", "2020-04-15", true},
		{"2020-04", "2020-04-01", true},
		{"15 April 2020", "2020-04-15", true},
		{"soon", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		ts, ok := ParseDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, ts.Format(DateLayout), tt.in)
		}
	}
}
