package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ConvertACFlags holds command-line flags for the convert-ac command
type ConvertACFlags struct {
	Links []string
}

// NewConvertACCommand creates the convert-ac command
func NewConvertACCommand(container *CLIContainer) *cobra.Command {
	flags := &ConvertACFlags{}

	cmd := &cobra.Command{
		Use:   "convert-ac <wtt-file> <summary-file>",
		Short: "Convert rake links to air-conditioned stock",
		Long: `Parse the workbooks and convert the named rake links to AC stock,
updating the rake and every service on the link's path. Links already
running AC stock are left alone.

Examples:
  gardi convert-ac wtt.xlsx summary.xlsx --links A,AK`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(flags.Links) == 0 {
				return &usageError{cmd: cmd, err: fmt.Errorf("--links is required")}
			}
			if err := loadWorkbooks(container, args); err != nil {
				return err
			}

			result, err := container.Workbench.ConvertToAC(flags.Links)
			if err != nil {
				return err
			}
			cmd.Printf("Converted %d rake links to AC\n", result.Converted)
			for _, link := range result.Links {
				cmd.Printf("  %s\n", link)
			}
			return nil
		},
	}

	// Add command-line flags
	cmd.Flags().StringSliceVar(&flags.Links, "links", nil, "Rake link names to convert")

	return cmd
}
