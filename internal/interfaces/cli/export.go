package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gardi.app/cli/internal/core/filtering"
	"gardi.app/cli/internal/core/timetable"
)

// ExportFlags holds command-line flags for the export command
type ExportFlags struct {
	Format string
	Out    string

	Mode           string
	StartStation   string
	EndStation     string
	PassingThrough []string
	From           float64
	To             float64
	AC             string
	Directions     []string
}

// NewExportCommand creates the export command
func NewExportCommand(container *CLIContainer) *cobra.Command {
	flags := &ExportFlags{}

	cmd := &cobra.Command{
		Use:   "export <wtt-file> <summary-file>",
		Short: "Export the filtered timetable as text or a spreadsheet",
		Long: `Parse the workbooks, apply the given filter and write the result: a text
report of rake links and inconsistencies, or an xlsx table of the
rendered services.

Examples:
  gardi export wtt.xlsx summary.xlsx
  gardi export wtt.xlsx summary.xlsx --start VIRAR --ac ac
  gardi export wtt.xlsx summary.xlsx --format xlsx --out services.xlsx`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, container, flags, args)
		},
	}

	// Add command-line flags
	cmd.Flags().StringVar(&flags.Format, "format", "text", "Output format (text, xlsx)")
	cmd.Flags().StringVar(&flags.Out, "out", "", "Output file (defaults to stdout for text)")
	cmd.Flags().StringVar(&flags.Mode, "mode", "rakelink", "Filter mode (rakelink, service, station)")
	cmd.Flags().StringVar(&flags.StartStation, "start", "", "Only services starting at this station")
	cmd.Flags().StringVar(&flags.EndStation, "end", "", "Only services ending at this station")
	cmd.Flags().StringSliceVar(&flags.PassingThrough, "via", nil, "Only services passing through these stations")
	cmd.Flags().Float64Var(&flags.From, "from", filtering.FullDay().Start, "Window start, minutes since midnight")
	cmd.Flags().Float64Var(&flags.To, "to", filtering.FullDay().End, "Window end, minutes since midnight")
	cmd.Flags().StringVar(&flags.AC, "ac", "all", "AC filter (all, ac, nonac)")
	cmd.Flags().StringSliceVar(&flags.Directions, "direction", nil, "Only services in these directions (up, down)")

	return cmd
}

// runExport loads the workbooks, applies the filter flags and writes the
// requested output.
func runExport(cmd *cobra.Command, container *CLIContainer, flags *ExportFlags, args []string) error {
	query, err := queryFromFlags(flags)
	if err != nil {
		return &usageError{cmd: cmd, err: err}
	}
	if flags.Format != "text" && flags.Format != "xlsx" {
		return &usageError{cmd: cmd, err: fmt.Errorf("unknown format %q", flags.Format)}
	}
	if flags.Format == "xlsx" && flags.Out == "" {
		return &usageError{cmd: cmd, err: fmt.Errorf("--format xlsx requires --out")}
	}

	wb := container.Workbench
	if err := wb.LoadFiles(args[0], args[1]); err != nil {
		return err
	}
	wb.SwitchMode(query.Mode)
	wb.UpdateQuery(func(q *filtering.Query) {
		*q = query
	})
	if _, err := wb.BuildFigure(); err != nil {
		return err
	}

	if flags.Format == "xlsx" {
		f, err := os.Create(flags.Out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := wb.WriteXLSX(f); err != nil {
			return err
		}
		cmd.Printf("Wrote %s\n", flags.Out)
		return nil
	}

	text := wb.ResultsText()
	if flags.Out == "" {
		cmd.Print(text)
		return nil
	}
	if err := os.WriteFile(flags.Out, []byte(text), 0o644); err != nil {
		return err
	}
	cmd.Printf("Wrote %s\n", flags.Out)
	return nil
}

// queryFromFlags translates the filter flags into a query, validating the
// enumerated values.
func queryFromFlags(flags *ExportFlags) (filtering.Query, error) {
	q := filtering.NewQuery()

	mode, err := filtering.NewMode(flags.Mode)
	if err != nil {
		return q, err
	}
	q.Mode = mode

	ac, err := filtering.NewACMode(flags.AC)
	if err != nil {
		return q, err
	}
	q.AC = ac

	for _, d := range flags.Directions {
		dir, err := timetable.NewDirection(d)
		if err != nil {
			return q, err
		}
		q.Directions = append(q.Directions, dir)
	}

	q.StartStation = flags.StartStation
	q.EndStation = flags.EndStation
	q.PassingThrough = flags.PassingThrough
	q.TimeWindow = filtering.TimeWindow{Start: flags.From, End: flags.To}
	return q, nil
}
