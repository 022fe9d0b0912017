package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/trialdash/internal/analysis"
	"github.com/KaramelBytes/trialdash/internal/dashboard"
	"github.com/KaramelBytes/trialdash/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	anaSelection  selectionFlags
	anaFormat     string
	anaOutputPath string
	anaSampleRows int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute the dashboard aggregates for a filter selection",
	Long: `Loads and cleans the dataset, applies the filters and prints the KPIs,
distributions, monthly counts, top countries and enrollment histogram.
Filters left unset use the dashboard defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		p := newPipeline(c)
		sel, err := anaSelection.resolve(ctx, cmd, p)
		if err != nil {
			return err
		}
		snap, err := p.Run(ctx, dashboard.Query{Selection: sel, PreviewRows: anaSampleRows})
		if err != nil {
			return err
		}

		out, err := renderReport(snap.Report, anaFormat)
		if err != nil {
			return err
		}
		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func renderReport(rep *analysis.Report, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return []byte(rep.Markdown()), nil
	case "json":
		b, err := utils.PrettyJSON(rep)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case "yaml", "yml":
		b, err := yaml.Marshal(rep)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported --format: %s (use markdown|json|yaml)", format)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaSelection.register(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "markdown", "output format: markdown|json|yaml")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "write the report to a file instead of stdout")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 0, "number of preview rows (default from config)")
}
