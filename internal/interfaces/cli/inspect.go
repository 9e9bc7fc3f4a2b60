package cli

import (
	"github.com/spf13/cobra"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <wtt-file> <summary-file>",
		Short: "Parse workbooks and print timetable statistics",
		Long: `Parse the WTT and summary workbooks, reconstruct the rake cycles and
print the headline statistics: parsed and rendered service counts, AC
split, link counts, parsing conflicts and the distance extremes.

Examples:
  gardi inspect wtt.xlsx summary.xlsx`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadWorkbooks(container, args); err != nil {
				return err
			}

			printSummary(cmd, container.Workbench.Summary())

			tt := container.Workbench.Timetable()
			if len(tt.ConflictingLinks) > 0 {
				cmd.Println()
				cmd.Println("Rake link inconsistencies:")
				for _, conflict := range tt.ConflictingLinks {
					cmd.Printf("  %s: summary %v vs WTT %v\n",
						conflict.Cycle.LinkName, conflict.Cycle.ServiceIDs, conflict.WTTPath)
				}
			}
			return nil
		},
	}

	return cmd
}
