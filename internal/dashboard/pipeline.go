// Package dashboard composes loading, cleaning, filtering and aggregation
// into the single recomputation the presentation layers call on every
// control change.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KaramelBytes/trialdash/internal/analysis"
	"github.com/KaramelBytes/trialdash/internal/clean"
	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/KaramelBytes/trialdash/internal/filter"
	"github.com/sirupsen/logrus"
)

// Chart and scale render hints.
const (
	ChartLine   = "line"
	ChartBar    = "bar"
	ScaleLinear = "linear"
	ScaleLog    = "log"
)

// ErrInvalidQuery wraps every query validation failure.
var ErrInvalidQuery = errors.New("invalid query")

// Options configures the pipeline.
type Options struct {
	Clean clean.Options
	// DefaultCountryCount is the number of countries preselected; 0 selects all.
	DefaultCountryCount int
	DefaultTopN         int
	Bins                int
	PreviewRows         int
}

// DefaultOptions mirrors the dashboard's initial control state.
func DefaultOptions() Options {
	return Options{
		Clean:               clean.DefaultOptions(),
		DefaultCountryCount: filter.DefaultCountryCount,
		DefaultTopN:         filter.DefaultTopN,
		Bins:                analysis.DefaultBins,
		PreviewRows:         20,
	}
}

// Query is one evaluation request: the filter selection plus render hints.
type Query struct {
	Selection   filter.Selection
	Chart       string
	Scale       string
	PreviewRows int
}

// Validate checks the selection bound and the render hints.
func (q Query) Validate() error {
	if err := q.Selection.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	switch q.Chart {
	case "", ChartLine, ChartBar:
	default:
		return fmt.Errorf("%w: chart must be %q or %q, got %q", ErrInvalidQuery, ChartLine, ChartBar, q.Chart)
	}
	switch q.Scale {
	case "", ScaleLinear, ScaleLog:
	default:
		return fmt.Errorf("%w: scale must be %q or %q, got %q", ErrInvalidQuery, ScaleLinear, ScaleLog, q.Scale)
	}
	if q.PreviewRows < 0 {
		return fmt.Errorf("%w: rows must not be negative", ErrInvalidQuery)
	}
	return nil
}

// Snapshot is everything the dashboard renders for one query.
type Snapshot struct {
	*analysis.Report
	TotalRows int    `json:"total_rows" yaml:"total_rows"`
	Chart     string `json:"chart" yaml:"chart"`
	Scale     string `json:"scale" yaml:"scale"`
}

// Pipeline owns the process-wide cleaned table. The table is built lazily
// on first use and never rebuilt.
type Pipeline struct {
	log    logrus.FieldLogger
	loader *dataset.Loader
	opt    Options

	mu    sync.Mutex
	table *clean.Table
}

// New creates a pipeline over loader.
func New(log logrus.FieldLogger, loader *dataset.Loader, opt Options) *Pipeline {
	return &Pipeline{
		log:    log.WithField("component", "pipeline"),
		loader: loader,
		opt:    opt,
	}
}

// Options returns the pipeline configuration.
func (p *Pipeline) Options() Options { return p.opt }

// Table returns the cleaned table, loading and cleaning it on first call.
func (p *Pipeline) Table(ctx context.Context) (*clean.Table, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.table != nil {
		return p.table, nil
	}

	raw, err := p.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	tbl, err := clean.Clean(raw, p.opt.Clean)
	if err != nil {
		return nil, err
	}
	for _, w := range tbl.Warnings {
		p.log.WithFields(logrus.Fields{
			"column": w.Column,
			"kind":   w.Kind,
			"count":  w.Count,
		}).Warn(w.Detail)
	}
	p.log.WithFields(logrus.Fields{
		"rows":              tbl.Len(),
		"enrollment_median": tbl.EnrollmentMedian,
	}).Info("Cleaned dataset")

	p.table = tbl
	return tbl, nil
}

// Choices lists the available filter values.
func (p *Pipeline) Choices(ctx context.Context) (filter.Choices, error) {
	tbl, err := p.Table(ctx)
	if err != nil {
		return filter.Choices{}, err
	}
	return filter.Options(tbl), nil
}

// DefaultSelection is the selection shown before the user touches a control.
func (p *Pipeline) DefaultSelection(ctx context.Context) (filter.Selection, error) {
	tbl, err := p.Table(ctx)
	if err != nil {
		return filter.Selection{}, err
	}
	return filter.DefaultSelection(tbl, p.opt.DefaultCountryCount, p.opt.DefaultTopN), nil
}

// View applies sel to the cleaned table.
func (p *Pipeline) View(ctx context.Context, sel filter.Selection) (*filter.View, error) {
	tbl, err := p.Table(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(tbl, sel), nil
}

// Run evaluates q from scratch.
func (p *Pipeline) Run(ctx context.Context, q Query) (*Snapshot, error) {
	if q.Selection.TopN == 0 {
		q.Selection.TopN = p.opt.DefaultTopN
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	v, err := p.View(ctx, q.Selection)
	if err != nil {
		return nil, err
	}

	rows := q.PreviewRows
	if rows == 0 {
		rows = p.opt.PreviewRows
	}
	snap := &Snapshot{
		Report: analysis.Build(v, q.Selection, analysis.Options{
			TopN:       q.Selection.TopN,
			Bins:       p.opt.Bins,
			SampleRows: rows,
		}),
		TotalRows: v.Source().Len(),
		Chart:     q.Chart,
		Scale:     q.Scale,
	}
	if snap.Chart == "" {
		snap.Chart = ChartLine
	}
	if snap.Scale == "" {
		snap.Scale = ScaleLinear
	}
	return snap, nil
}
