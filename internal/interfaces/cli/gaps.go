package cli

import (
	"sort"

	"github.com/spf13/cobra"
	"gardi.app/cli/internal/core/filtering"
)

// GapsFlags holds command-line flags for the gaps command
type GapsFlags struct {
	Threshold float64
	Stations  []string
	From      float64
	To        float64
}

// NewGapsCommand creates the gaps command
func NewGapsCommand(container *CLIContainer) *cobra.Command {
	flags := &GapsFlags{}

	cmd := &cobra.Command{
		Use:   "gaps <wtt-file> <summary-file>",
		Short: "Count service gaps above a threshold per station",
		Long: `Parse the workbooks and count, per station, the intervals between
consecutive station events longer than the threshold inside the given
time window.

Examples:
  gardi gaps wtt.xlsx summary.xlsx
  gardi gaps wtt.xlsx summary.xlsx --threshold 20 --stations BORIVALI
  gardi gaps wtt.xlsx summary.xlsx --from 420 --to 600`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadWorkbooks(container, args); err != nil {
				return err
			}

			stations := flags.Stations
			if len(stations) == 0 {
				stations = container.Workbench.Stations()
			}

			gaps, err := container.Workbench.Gaps(flags.Threshold, stations, [2]float64{flags.From, flags.To})
			if err != nil {
				return err
			}

			names := make([]string, 0, len(gaps))
			for name := range gaps {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				cmd.Printf("%s: %d\n", name, gaps[name])
			}
			return nil
		},
	}

	// Add command-line flags
	cmd.Flags().Float64Var(&flags.Threshold, "threshold", 30, "Minimum gap in minutes to count")
	cmd.Flags().StringSliceVar(&flags.Stations, "stations", nil, "Stations to check (default every parsed station)")
	cmd.Flags().Float64Var(&flags.From, "from", filtering.FullDay().Start, "Window start, minutes since midnight")
	cmd.Flags().Float64Var(&flags.To, "to", filtering.FullDay().End, "Window end, minutes since midnight")

	return cmd
}
