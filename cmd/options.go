package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/trialdash/internal/filter"
	"github.com/KaramelBytes/trialdash/internal/utils"
	"github.com/spf13/cobra"
)

var optJSON bool

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List the available filter values and the default selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		p := newPipeline(c)
		choices, err := p.Choices(ctx)
		if err != nil {
			return err
		}
		def, err := p.DefaultSelection(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if optJSON {
			b, err := utils.PrettyJSON(map[string]any{
				"choices":  choices,
				"defaults": filter.Choices{Countries: def.Countries.Sorted(), Statuses: def.Statuses.Sorted(), Phases: def.Phases.Sorted()},
				"top_n":    def.TopN,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(b))
			return err
		}
		printChoices(w, "Countries", choices.Countries, def.Countries)
		printChoices(w, "Statuses", choices.Statuses, def.Statuses)
		printChoices(w, "Phases", choices.Phases, def.Phases)
		fmt.Fprintf(w, "Top N: %d (range %d..%d)\n", def.TopN, filter.MinTopN, filter.MaxTopN)
		return nil
	},
}

// printChoices lists vals, marking the ones selected by default with '*'.
func printChoices(w io.Writer, title string, vals []string, selected filter.Set) {
	fmt.Fprintf(w, "%s (%d):\n", title, len(vals))
	for _, v := range vals {
		mark := " "
		if selected.Has(v) {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, strings.TrimSpace(v))
	}
}

func init() {
	rootCmd.AddCommand(optionsCmd)
	optionsCmd.Flags().BoolVar(&optJSON, "json", false, "print as JSON")
}
