package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedModel(t *testing.T, ac bool) dashboardModel {
	t.Helper()

	wtt, summary := writeWorkbooks(t, ac)
	container := NewCLIContainer()
	require.NoError(t, loadWorkbooks(container, []string{wtt, summary}))

	model := newDashboardModel(container, &DashboardFlags{MaxRows: 40})
	updated, _ := model.Update(model.loadRowsCmd()())
	return updated.(dashboardModel)
}

func TestDashboard_View(t *testing.T) {
	model := loadedModel(t, true)

	view := model.View()

	assert.Contains(t, view, "Gardi Rake Links")
	assert.Contains(t, view, "LINK")
	assert.Contains(t, view, "A")
	assert.Contains(t, view, "Links: 1")
	assert.Contains(t, view, "Convert to AC")
}

func TestDashboard_Navigation(t *testing.T) {
	model := loadedModel(t, true)
	require.Len(t, model.rows, 1)

	// Selection clamps at both ends of a one-row table.
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model = updated.(dashboardModel)
	assert.Equal(t, 0, model.selectedRow)

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	model = updated.(dashboardModel)
	assert.Equal(t, 0, model.selectedRow)
}

func TestDashboard_Quit(t *testing.T) {
	model := loadedModel(t, true)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestDashboard_ConvertSelected(t *testing.T) {
	model := loadedModel(t, false)
	require.Len(t, model.rows, 1)
	require.Equal(t, "Non-AC", model.rows[0].IsAC)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	model = updated.(dashboardModel)
	require.NotNil(t, cmd)

	updated, _ = model.Update(cmd())
	model = updated.(dashboardModel)
	assert.Equal(t, "AC", model.rows[0].IsAC)
}

func TestDashboard_ErrorView(t *testing.T) {
	model := loadedModel(t, true)

	updated, _ := model.Update(dashboardErrMsg{err: assert.AnError})
	view := updated.(dashboardModel).View()

	assert.Contains(t, view, "Error:")
	assert.Contains(t, view, "Press 'q' to quit")
}
