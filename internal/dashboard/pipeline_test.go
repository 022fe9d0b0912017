package dashboard

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/KaramelBytes/trialdash/internal/filter"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trialsCSV = `Status,Phases,Enrollment,Start Date,Locations,Study Documents
Completed,Phase 2,100,2020-03-01,"Boston, MA, United States",
Recruiting,Phase 1,,2020-04-15,"Delhi, India",doc
Completed,Phase 3,300,not a date,"Paris, France",
Withdrawn,,50,"May 2, 2020",,
Completed,Phase 2,200,2020-03-20,"Austin, TX, United States",
Completed,Phase 2,20,2020-06-01,"Lima, Peru",
Recruiting,Phase 2,40,2020-06-09,"Rome, Italy",
`

func newPipeline(t *testing.T) (*Pipeline, *test.Hook) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "trials.csv")
	require.NoError(t, os.WriteFile(p, []byte(trialsCSV), 0o644))
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return New(log, dataset.NewLoader(log, p, dataset.DefaultOptions()), DefaultOptions()), hook
}

func TestPipelineTableIsMemoized(t *testing.T) {
	p, hook := newPipeline(t)
	ctx := context.Background()

	first, err := p.Table(ctx)
	require.NoError(t, err)
	second, err := p.Table(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.False(t, first.Has("Study Documents"))

	warns := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warns++
		}
	}
	assert.Equal(t, len(first.Warnings), warns, "warnings are logged once")
}

func TestPipelineDefaults(t *testing.T) {
	p, _ := newPipeline(t)
	ctx := context.Background()

	c, err := p.Choices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"United States", "India", "France", "Missing", "Peru", "Italy"}, c.Countries)

	sel, err := p.DefaultSelection(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, sel.Countries.Len())
	assert.False(t, sel.Countries.Has("Italy"))
	assert.Equal(t, filter.DefaultTopN, sel.TopN)
}

func TestPipelineRun(t *testing.T) {
	p, _ := newPipeline(t)
	ctx := context.Background()
	sel, err := p.DefaultSelection(ctx)
	require.NoError(t, err)

	snap, err := p.Run(ctx, Query{Selection: sel})
	require.NoError(t, err)
	assert.Equal(t, 7, snap.TotalRows)
	assert.Equal(t, 6, snap.KPI.Trials)
	assert.Equal(t, 4, snap.KPI.Completed)
	assert.Equal(t, 5, snap.KPI.Countries)
	assert.Equal(t, ChartLine, snap.Chart)
	assert.Equal(t, ScaleLinear, snap.Scale)
	assert.Equal(t, "United States", snap.Countries[0].Value)
	assert.Equal(t, 5, snap.Monthly.Total())
	assert.Equal(t, 1, snap.Monthly.Unknown)
	assert.Len(t, snap.Samples, 6)

	snap, err = p.Run(ctx, Query{Selection: sel, Chart: ChartBar, Scale: ScaleLog, PreviewRows: 2})
	require.NoError(t, err)
	assert.Equal(t, ChartBar, snap.Chart)
	assert.Len(t, snap.Samples, 2)
}

func TestPipelineRunEmptySelection(t *testing.T) {
	p, _ := newPipeline(t)
	snap, err := p.Run(context.Background(), Query{Selection: filter.Selection{TopN: 5}})
	require.NoError(t, err)
	assert.Equal(t, 0, snap.KPI.Trials)
	assert.False(t, snap.KPI.HasMedian)
	assert.Empty(t, snap.Countries)
	assert.Empty(t, snap.Enrollment.Counts)
}

func TestQueryValidate(t *testing.T) {
	ok := filter.Selection{TopN: 10}
	tests := []struct {
		name string
		q    Query
		err  bool
	}{
		{name: "defaults", q: Query{Selection: ok}},
		{name: "bar log", q: Query{Selection: ok, Chart: ChartBar, Scale: ScaleLog}},
		{name: "top n", q: Query{Selection: filter.Selection{TopN: 25}}, err: true},
		{name: "chart", q: Query{Selection: ok, Chart: "pie"}, err: true},
		{name: "scale", q: Query{Selection: ok, Scale: "sqrt"}, err: true},
		{name: "rows", q: Query{Selection: ok, PreviewRows: -1}, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidQuery)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPipelineLoadFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	p := New(log, dataset.NewLoader(log, filepath.Join(t.TempDir(), "missing.csv"), dataset.DefaultOptions()), DefaultOptions())
	_, err := p.Run(context.Background(), Query{Selection: filter.Selection{TopN: 10}})
	var ioErr *dataset.IOError
	assert.ErrorAs(t, err, &ioErr)
}
