package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardi.app/cli/internal/core/filtering"
	"gardi.app/cli/internal/core/timetable"
)

// Local test helpers

func benchService(id string, dir timetable.Direction, linkedTo string, start float64, stations ...string) *timetable.Service {
	svc := &timetable.Service{
		Type:      timetable.ServiceRegular,
		IDs:       []string{id},
		Direction: dir,
		LinkedTo:  linkedTo,
		Render:    true,
	}
	for i, st := range stations {
		svc.Events = append(svc.Events, &timetable.StationEvent{
			AtStation: st,
			AtTime:    start + float64(i*15),
			Kind:      timetable.EventArrival,
			Render:    true,
		})
	}
	return svc
}

// loadedWorkbench returns a workbench with an unparsed-but-populated
// timetable: two links, rake cycles not yet generated.
func loadedWorkbench() *Workbench {
	tt := timetable.New()
	for name, km := range timetable.DistanceMap {
		tt.Stations[name] = &timetable.Station{Name: name, KmFromOrigin: km}
	}

	a1 := benchService("93002", timetable.DirectionUp, "93003", 400, "VIRAR", "BORIVALI", "CHURCHGATE")
	a1.NeedsAC = true
	a1.RakeSizeReq = 12
	a2 := benchService("93003", timetable.DirectionDown, "", 500, "CHURCHGATE", "VIRAR")
	b1 := benchService("94001", timetable.DirectionUp, "", 900, "BORIVALI", "ANDHERI", "CHURCHGATE")

	linkA := timetable.NewRakeCycle("A")
	linkA.ServiceIDs = []string{"93002", "93003"}
	linkB := timetable.NewRakeCycle("B")
	linkB.ServiceIDs = []string{"94001"}

	tt.UpServices = []*timetable.Service{a1, b1}
	tt.DownServices = []*timetable.Service{a2}
	tt.SuburbanServices = []*timetable.Service{a1, a2, b1}
	tt.RakeCycles = []*timetable.RakeCycle{linkA, linkB}

	w := NewWorkbench()
	w.tt = tt
	return w
}

// TestWorkbench_NotLoaded tests every operation's unloaded guard
func TestWorkbench_NotLoaded(t *testing.T) {
	w := NewWorkbench()
	assert.False(t, w.Loaded())
	assert.Nil(t, w.Stations())
	assert.Nil(t, w.ServiceTable())
	assert.Empty(t, w.ResultsText())

	_, err := w.BuildFigure()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no timetable loaded")

	_, err = w.ConvertToAC([]string{"A"})
	assert.Error(t, err)

	err = w.WriteXLSX(&bytes.Buffer{})
	assert.Error(t, err)

	err = w.Reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backing files")
}

// TestWorkbench_BuildFigure tests the full pipeline including first-run
// cycle generation
func TestWorkbench_BuildFigure(t *testing.T) {
	w := loadedWorkbench()

	fig, err := w.BuildFigure()
	require.NoError(t, err)
	require.Len(t, fig.Data, 2)
	assert.True(t, w.cyclesBuilt)

	// Cycle generation linked 93002 and 93003 into one path and gave
	// the path's AC requirement to the rake.
	rc := w.tt.CycleByLink("A")
	require.NotNil(t, rc)
	require.Len(t, rc.ServicePath, 2)
	require.NotNil(t, rc.Rake)
	assert.True(t, rc.Rake.IsAC)
}

// TestWorkbench_ACConversionRevertsOnRebuild tests that rebuilding resets
// conversions back to the parsed state
func TestWorkbench_ACConversionRevertsOnRebuild(t *testing.T) {
	w := loadedWorkbench()
	_, err := w.BuildFigure()
	require.NoError(t, err)

	res, err := w.ConvertToAC([]string{"B"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Converted)
	assert.True(t, w.tt.CycleByLink("B").Rake.IsAC)

	_, err = w.BuildFigure()
	require.NoError(t, err)
	assert.False(t, w.tt.CycleByLink("B").Rake.IsAC,
		"a rebuild must restore the original AC snapshot")
}

// TestWorkbench_FilteredFigure tests that the active query drives rendering
func TestWorkbench_FilteredFigure(t *testing.T) {
	w := loadedWorkbench()
	w.UpdateQuery(func(q *filtering.Query) {
		q.StartStation = "VIRAR"
	})

	fig, err := w.BuildFigure()
	require.NoError(t, err)
	require.Len(t, fig.Data, 1)
	assert.Equal(t, "A", fig.Data[0].Name)
	assert.Equal(t, 1, w.Statistics().TotalRendered)
}

// TestWorkbench_HighlightsSelection tests selection re-application after a
// rebuild
func TestWorkbench_HighlightsSelection(t *testing.T) {
	w := loadedWorkbench()
	w.UpdateQuery(func(q *filtering.Query) {
		q.SelectedLinks = []string{"A"}
	})

	fig, err := w.BuildFigure()
	require.NoError(t, err)
	require.Len(t, fig.Data, 2)
	assert.Equal(t, 1.0, fig.Data[0].Opacity)
	assert.Equal(t, 0.35, fig.Data[1].Opacity)
}

// TestWorkbench_SwitchMode tests per-mode constraint stashing
func TestWorkbench_SwitchMode(t *testing.T) {
	w := loadedWorkbench()
	w.UpdateQuery(func(q *filtering.Query) {
		q.StartStation = "VIRAR"
		q.SelectedLinks = []string{"A"}
	})

	w.SwitchMode(filtering.ModeService)
	q := w.Query()
	assert.Equal(t, filtering.ModeService, q.Mode)
	assert.Empty(t, q.StartStation, "a fresh tab starts unconstrained")
	assert.Empty(t, q.SelectedLinks, "selections never carry across tabs")

	w.UpdateQuery(func(q *filtering.Query) {
		q.EndStation = "CHURCHGATE"
	})

	// Going back restores what rake-link mode had.
	w.SwitchMode(filtering.ModeRakeLink)
	q = w.Query()
	assert.Equal(t, "VIRAR", q.StartStation)
	assert.Empty(t, q.EndStation)

	// And forward again restores service mode's own state.
	w.SwitchMode(filtering.ModeService)
	assert.Equal(t, "CHURCHGATE", w.Query().EndStation)

	// Switching to the current mode is a no-op.
	w.SwitchMode(filtering.ModeService)
	assert.Equal(t, "CHURCHGATE", w.Query().EndStation)
}

// TestWorkbench_Annotate tests the rake-link info box
func TestWorkbench_Annotate(t *testing.T) {
	w := loadedWorkbench()
	fig, err := w.BuildFigure()
	require.NoError(t, err)

	require.NoError(t, w.Annotate(fig, "A"))
	require.Len(t, fig.Layout.Annotations, 1)
	assert.Contains(t, fig.Layout.Annotations[0].Text, "Rake Link A")

	err = w.Annotate(fig, "Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rake link")
}

// TestWorkbench_TablesAndSummary tests export delegation
func TestWorkbench_TablesAndSummary(t *testing.T) {
	w := loadedWorkbench()
	_, err := w.BuildFigure()
	require.NoError(t, err)

	assert.Len(t, w.ServiceTable(), 3)
	assert.Len(t, w.RakeTable(), 2)

	s := w.Summary()
	assert.Equal(t, 3, s.TotalParsedServices)
	assert.Equal(t, 2, s.RenderedLinks)

	text := w.ResultsText()
	assert.Contains(t, text, "=== Rake Link Inconsistencies ===")

	var buf bytes.Buffer
	require.NoError(t, w.WriteXLSX(&buf))
	assert.NotZero(t, buf.Len())
}

// TestWorkbench_Gaps tests gap detection delegation
func TestWorkbench_Gaps(t *testing.T) {
	w := loadedWorkbench()
	w.tt.EventsByStation["BORIVALI"] = []*timetable.StationEvent{
		{AtStation: "BORIVALI", AtTime: 400, Render: true},
		{AtStation: "BORIVALI", AtTime: 500, Render: true},
	}

	gaps, err := w.Gaps(30, []string{"BORIVALI"}, [2]float64{165, 1605})
	require.NoError(t, err)
	assert.Equal(t, 1, gaps["BORIVALI"])
}

// TestWorkbench_Stations tests corridor ordering
func TestWorkbench_Stations(t *testing.T) {
	w := loadedWorkbench()
	names := w.Stations()
	require.Len(t, names, len(timetable.DistanceMap))
	assert.Equal(t, "CHURCHGATE", names[0])
	assert.Equal(t, "VIRAR", names[len(names)-1])
}

// TestValidWorkbookName tests upload filename screening
func TestValidWorkbookName(t *testing.T) {
	assert.True(t, ValidWorkbookName("wtt.xlsx"))
	assert.True(t, ValidWorkbookName("WTT.XLSX"))
	assert.False(t, ValidWorkbookName("wtt.xls"))
	assert.False(t, ValidWorkbookName(""))
	assert.False(t, ValidWorkbookName("notes.txt"))
}
