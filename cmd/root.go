package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/KaramelBytes/trialdash/internal/clean"
	cfgpkg "github.com/KaramelBytes/trialdash/internal/config"
	"github.com/KaramelBytes/trialdash/internal/dashboard"
	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/KaramelBytes/trialdash/internal/filter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags (override config if set)
	cfgFile       string
	flagData      string
	flagLogLevel  string
	flagLogFormat string

	// Loaded configuration
	cfg *cfgpkg.Global
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "trialdash",
	Short: "COVID-19 clinical trials EDA dashboard",
	Long: `trialdash loads the ClinicalTrials.gov COVID-19 export, cleans it, and serves an
interactive dashboard of KPIs, distributions and trends. The same filters and
aggregations are available from the command line.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.trialdash/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagData, "data", "", "dataset path, CSV/TSV/XLSX (overrides data_path)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text or json (overrides config)")
}

func loadConfig() {
	if _, err := requireConfig(); err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
	}
}

// configureLogger applies level and format to l. An unknown level leaves
// the logger at info.
func configureLogger(l *logrus.Logger, level, format string, out io.Writer) error {
	l.SetOutput(out)
	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q (use text or json)", format)
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		l.SetLevel(logrus.InfoLevel)
		return fmt.Errorf("invalid log level: %w", err)
	}
	l.SetLevel(lvl)
	return nil
}

// requireConfig returns the effective config, loading it on first use and
// applying the global flag overrides.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	f := rootCmd.PersistentFlags()
	if f.Changed("data") && flagData != "" {
		c.DataPath = flagData
	}
	if f.Changed("log-level") && flagLogLevel != "" {
		c.LogLevel = flagLogLevel
	}
	if f.Changed("log-format") && flagLogFormat != "" {
		c.LogFormat = flagLogFormat
	}
	if err := configureLogger(log, c.LogLevel, c.LogFormat, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
	}
	cfg = c
	return cfg, nil
}

// newPipeline builds the loader and pipeline from the effective config.
func newPipeline(c *cfgpkg.Global) *dashboard.Pipeline {
	dopt := dataset.DefaultOptions()
	dopt.Delimiter = c.DelimiterRune()
	dopt.SheetName = c.SheetName
	if c.SheetIndex > 0 {
		dopt.SheetIndex = c.SheetIndex
	}
	if len(c.NAValues) > 0 {
		dopt.NAValues = c.NAValues
	}

	copt := clean.DefaultOptions()
	copt.DropColumns = c.DropColumns
	copt.MedianFallback = c.MedianFallback

	popt := dashboard.DefaultOptions()
	popt.Clean = copt
	popt.DefaultCountryCount = c.DefaultCountryCount
	if c.DefaultTopN > 0 {
		popt.DefaultTopN = c.DefaultTopN
	}
	if c.HistogramBins > 0 {
		popt.Bins = c.HistogramBins
	}
	if c.PreviewRows > 0 {
		popt.PreviewRows = c.PreviewRows
	}

	loader := dataset.NewLoader(log, c.DataPath, dopt)
	return dashboard.New(log, loader, popt)
}

// selectionFlags are the filter controls shared by analyze and export.
type selectionFlags struct {
	countries []string
	statuses  []string
	phases    []string
	topN      int
}

func (s *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&s.countries, "country", nil, "country to include (repeatable; --country= selects none)")
	cmd.Flags().StringArrayVar(&s.statuses, "status", nil, "status to include (repeatable; --status= selects none)")
	cmd.Flags().StringArrayVar(&s.phases, "phase", nil, "phase to include (repeatable; --phase= selects none)")
	cmd.Flags().IntVar(&s.topN, "top-n", 0, fmt.Sprintf("number of top countries (%d..%d)", filter.MinTopN, filter.MaxTopN))
}

func (s *selectionFlags) reset() {
	s.countries, s.statuses, s.phases, s.topN = nil, nil, nil, 0
}

// resolve starts from the pipeline's default selection and replaces every
// control whose flag was given.
func (s *selectionFlags) resolve(ctx context.Context, cmd *cobra.Command, p *dashboard.Pipeline) (filter.Selection, error) {
	sel, err := p.DefaultSelection(ctx)
	if err != nil {
		return filter.Selection{}, err
	}
	f := cmd.Flags()
	if f.Changed("country") {
		sel.Countries = nonEmptySet(s.countries)
	}
	if f.Changed("status") {
		sel.Statuses = nonEmptySet(s.statuses)
	}
	if f.Changed("phase") {
		sel.Phases = nonEmptySet(s.phases)
	}
	if f.Changed("top-n") {
		sel.TopN = s.topN
	}
	if err := sel.Validate(); err != nil {
		return filter.Selection{}, err
	}
	return sel, nil
}

func nonEmptySet(vals []string) filter.Set {
	out := filter.Set{}
	for _, v := range vals {
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}
