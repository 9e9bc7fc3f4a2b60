package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gardi.app/cli/internal/infrastructure/export"
)

// DashboardFlags holds command-line flags for the dashboard command
type DashboardFlags struct {
	MaxRows int
}

// NewDashboardCommand creates the dashboard command
func NewDashboardCommand(container *CLIContainer) *cobra.Command {
	flags := &DashboardFlags{}

	cmd := &cobra.Command{
		Use:   "dashboard <wtt-file> <summary-file>",
		Short: "Interactive terminal table of rake links",
		Long: `Launch an interactive terminal view of the parsed rake links with
keyboard controls for navigation and on-the-fly AC conversion.

Examples:
  gardi dashboard wtt.xlsx summary.xlsx`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadWorkbooks(container, args); err != nil {
				return err
			}
			return runDashboard(container, flags)
		},
	}

	// Add command-line flags
	cmd.Flags().IntVar(&flags.MaxRows, "max-rows", 40, "Maximum number of rake links to display")

	return cmd
}

// runDashboard starts the terminal dashboard
func runDashboard(container *CLIContainer, flags *DashboardFlags) error {
	model := newDashboardModel(container, flags)

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}

	return nil
}

// dashboardModel holds the state for the Bubble Tea dashboard
type dashboardModel struct {
	container    *CLIContainer
	flags        *DashboardFlags
	rows         []export.RakeRow
	summary      export.Summary
	selectedRow  int
	windowWidth  int
	windowHeight int
	err          error
}

// newDashboardModel creates a new dashboard model
func newDashboardModel(container *CLIContainer, flags *DashboardFlags) dashboardModel {
	return dashboardModel{
		container: container,
		flags:     flags,
	}
}

// Init implements the Bubble Tea init method
func (m dashboardModel) Init() tea.Cmd {
	return m.loadRowsCmd()
}

// Update implements the Bubble Tea update method
func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "up", "k":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			return m, nil

		case "down", "j":
			if m.selectedRow < len(m.rows)-1 {
				m.selectedRow++
			}
			return m, nil

		case "a":
			if m.selectedRow < len(m.rows) {
				return m, m.convertCmd(m.rows[m.selectedRow].LinkName)
			}
			return m, nil

		case "r":
			return m, m.loadRowsCmd()
		}

	case rowsLoadedMsg:
		m.rows = msg.rows
		m.summary = msg.summary
		if m.selectedRow >= len(m.rows) {
			m.selectedRow = 0
		}
		return m, nil

	case dashboardErrMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

// View implements the Bubble Tea view method
func (m dashboardModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress 'q' to quit", m.err)
	}

	header := m.renderHeader()
	table := m.renderLinkTable()
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, table, footer)
}

// renderHeader renders the dashboard header
func (m dashboardModel) renderHeader() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render("Gardi Rake Links")

	stats := fmt.Sprintf("Links: %d | Services: %d | AC: %d | Non-AC: %d | Conflicts: %d",
		m.summary.TotalParsedLinks,
		m.summary.TotalParsedServices,
		m.summary.ACServices,
		m.summary.NonACServices,
		m.summary.ParsingConflicts,
	)

	line := lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", stats)
	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render(strings.Repeat("─", 80))

	return lipgloss.JoinVertical(lipgloss.Left, line, divider)
}

// renderLinkTable renders the rake link table
func (m dashboardModel) renderLinkTable() string {
	if len(m.rows) == 0 {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render("\n  No rake links to display.\n")
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render(fmt.Sprintf("%-6s │ %-4s │ %-6s │ %-5s │ %-12s │ %-12s │ %s",
			"LINK", "CARS", "AC", "KM", "START", "END", "SVCS"))

	rows := []string{header}

	maxRows := m.flags.MaxRows
	if m.windowHeight > 0 && m.windowHeight-8 < maxRows {
		maxRows = m.windowHeight - 8
	}
	for i, row := range m.rows {
		if i >= maxRows {
			break
		}

		rowStyle := lipgloss.NewStyle()
		if i == m.selectedRow {
			rowStyle = rowStyle.Background(lipgloss.Color("240"))
		}
		acStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		if row.IsAC == "AC" {
			acStyle = acStyle.Foreground(lipgloss.Color("39"))
		}

		line := fmt.Sprintf("%-6s │ %-4d │ %-6s │ %-5d │ %-12s │ %-12s │ %d",
			row.LinkName,
			row.Cars,
			acStyle.Render(row.IsAC),
			row.LengthKm,
			truncateString(row.Start, 12),
			truncateString(row.End, 12),
			row.NServices,
		)

		rows = append(rows, rowStyle.Render(line))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderFooter renders the control instructions footer
func (m dashboardModel) renderFooter() string {
	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render(strings.Repeat("─", 80))

	controls := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render("Controls: [↑↓] Navigate | [a] Convert to AC | [r] Refresh | [q] Quit")

	return lipgloss.JoinVertical(lipgloss.Left, divider, controls)
}

// rowsLoadedMsg is sent when the rake link table has been rebuilt
type rowsLoadedMsg struct {
	rows    []export.RakeRow
	summary export.Summary
}

// dashboardErrMsg is sent when an error occurs
type dashboardErrMsg struct {
	err error
}

// loadRowsCmd rebuilds the figure and reloads the rake link table
func (m dashboardModel) loadRowsCmd() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.container.Workbench.BuildFigure(); err != nil {
			return dashboardErrMsg{err: err}
		}
		return rowsLoadedMsg{
			rows:    m.container.Workbench.RakeTable(),
			summary: m.container.Workbench.Summary(),
		}
	}
}

// convertCmd converts the named link to AC and reloads the table
func (m dashboardModel) convertCmd(linkName string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.container.Workbench.ConvertToAC([]string{linkName}); err != nil {
			return dashboardErrMsg{err: err}
		}
		return rowsLoadedMsg{
			rows:    m.container.Workbench.RakeTable(),
			summary: m.container.Workbench.Summary(),
		}
	}
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
