// Package services holds the application workbench that ties parsing,
// filtering, plotting and exporting together for the CLI and the server.
package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"gardi.app/cli/internal/core/filtering"
	"gardi.app/cli/internal/core/rakeops"
	"gardi.app/cli/internal/core/timetable"
	"gardi.app/cli/internal/infrastructure/export"
	"gardi.app/cli/internal/infrastructure/plot"
	"gardi.app/cli/internal/infrastructure/workbook"
)

// Workbench drives one loaded timetable through the filter, plot and export
// pipeline. It is safe for concurrent use by the HTTP handlers.
type Workbench struct {
	mu sync.Mutex

	tt          *timetable.Timetable
	cyclesBuilt bool

	query filtering.Query

	// savedQueries remembers each mode's constraint fields so switching
	// tabs restores what the user had set there.
	savedQueries map[filtering.Mode]filtering.Query

	engine   *filtering.Engine
	plotter  *plot.Builder
	exporter *export.Builder

	wttPath     string
	summaryPath string
}

// NewWorkbench creates an empty workbench.
func NewWorkbench() *Workbench {
	return &Workbench{
		query:        filtering.NewQuery(),
		savedQueries: make(map[filtering.Mode]filtering.Query),
		engine:       filtering.NewEngine(),
		plotter:      plot.NewBuilder(),
		exporter:     export.NewBuilder(),
	}
}

// LoadFiles parses the timetable and summary workbooks from disk.
func (w *Workbench) LoadFiles(wttPath, summaryPath string) error {
	tt, err := workbook.ParseFiles(wttPath, summaryPath)
	if err != nil {
		return fmt.Errorf("failed to load workbooks: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tt = tt
	w.cyclesBuilt = false
	w.wttPath = wttPath
	w.summaryPath = summaryPath
	log.Info("workbooks loaded", "wtt", wttPath, "summary", summaryPath,
		"services", len(tt.SuburbanServices))
	return nil
}

// LoadReaders parses uploaded workbook contents.
func (w *Workbench) LoadReaders(wtt, summary io.Reader) error {
	tt, err := workbook.ParseReaders(wtt, summary)
	if err != nil {
		return fmt.Errorf("failed to load workbooks: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tt = tt
	w.cyclesBuilt = false
	w.wttPath = ""
	w.summaryPath = ""
	return nil
}

// Reload re-parses the workbooks the workbench was loaded from. It is a
// no-op for uploads, which have no backing files.
func (w *Workbench) Reload() error {
	w.mu.Lock()
	wttPath, summaryPath := w.wttPath, w.summaryPath
	w.mu.Unlock()

	if wttPath == "" || summaryPath == "" {
		return fmt.Errorf("no backing files to reload from")
	}
	return w.LoadFiles(wttPath, summaryPath)
}

// Loaded reports whether a timetable has been parsed.
func (w *Workbench) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tt != nil
}

// Stations lists the registered station names in corridor order.
func (w *Workbench) Stations() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tt == nil {
		return nil
	}

	names := make([]string, 0, len(w.tt.Stations))
	for name := range w.tt.Stations {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return timetable.DistanceMap[names[i]] < timetable.DistanceMap[names[j]]
	})
	return names
}

// Query returns the active filter query.
func (w *Workbench) Query() filtering.Query {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.query
}

// UpdateQuery mutates the active query under the workbench lock.
func (w *Workbench) UpdateQuery(mutate func(q *filtering.Query)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	mutate(&w.query)
}

// SwitchMode changes the filter mode, stashing the current mode's
// constraints and restoring whatever the target mode had before.
func (w *Workbench) SwitchMode(mode filtering.Mode) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.query.Mode == mode {
		return
	}

	w.savedQueries[w.query.Mode] = w.query

	saved, ok := w.savedQueries[mode]
	if !ok {
		saved = filtering.NewQuery()
	}
	saved.Mode = mode
	w.query.Mode = mode
	w.query.StartStation = saved.StartStation
	w.query.EndStation = saved.EndStation
	w.query.PassingThrough = saved.PassingThrough
	w.query.TimeWindow = saved.TimeWindow
	w.query.Directions = saved.Directions
	w.query.SelectedLinks = nil
	w.query.SelectedServices = nil

	log.Debug("switched filter mode", "mode", mode)
}

// BuildFigure runs the full pipeline for the active query: rake cycle
// generation on first use, flag reset, filtering, plotting and highlight
// re-application.
func (w *Workbench) BuildFigure() (*plot.Figure, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tt == nil {
		return nil, fmt.Errorf("no timetable loaded")
	}

	if !w.cyclesBuilt {
		// GenerateRakeCycles snapshots the AC states after rake assignment.
		if err := w.tt.GenerateRakeCycles(); err != nil {
			return nil, fmt.Errorf("failed to generate rake cycles: %w", err)
		}
		w.cyclesBuilt = true
	} else {
		w.tt.ResetACStates()
	}

	w.engine.ResetAllFlags(w.tt)
	w.engine.Apply(w.tt, w.query)

	fig, err := w.plotter.Build(w.tt, w.query)
	if err != nil {
		return nil, err
	}

	if len(w.query.SelectedLinks) > 0 {
		w.plotter.HighlightLinks(fig, w.query.SelectedLinks)
	}
	if w.query.Mode == filtering.ModeService && len(w.query.SelectedServices) > 0 {
		w.plotter.HighlightServices(fig, w.query.SelectedServices)
	}

	return fig, nil
}

// Annotate describes the named rake link in a figure text box.
func (w *Workbench) Annotate(fig *plot.Figure, linkName string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tt == nil {
		return fmt.Errorf("no timetable loaded")
	}
	rc := w.tt.CycleByLink(linkName)
	if rc == nil {
		return fmt.Errorf("unknown rake link: %s", linkName)
	}
	fig.Layout.Annotations = w.plotter.BuildAnnotation(rc)
	return nil
}

// ConvertToAC upgrades the named rake links and their services to AC.
func (w *Workbench) ConvertToAC(linkNames []string) (rakeops.ConversionResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tt == nil {
		return rakeops.ConversionResult{}, fmt.Errorf("no timetable loaded")
	}
	return rakeops.ConvertToAC(w.tt, linkNames), nil
}

// Gaps counts service gaps above the threshold at each station.
func (w *Workbench) Gaps(thresholdMinutes float64, stations []string, window [2]float64) (rakeops.StationGaps, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tt == nil {
		return nil, fmt.Errorf("no timetable loaded")
	}
	return rakeops.DetectGaps(w.tt, thresholdMinutes, stations, window), nil
}

// ServiceTable lists the rendered services.
func (w *Workbench) ServiceTable() []export.ServiceRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tt == nil {
		return nil
	}
	return w.exporter.ServiceTable(w.tt)
}

// RakeTable lists the rendered rake links.
func (w *Workbench) RakeTable() []export.RakeRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tt == nil {
		return nil
	}
	return w.exporter.RakeTable(w.tt)
}

// ResultsText renders the plain-text report for the current filter state.
func (w *Workbench) ResultsText() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tt == nil {
		return ""
	}
	return w.exporter.ResultsText(w.tt, w.query)
}

// Summary computes the headline statistics.
func (w *Workbench) Summary() export.Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tt == nil {
		return export.Summary{}
	}
	return w.exporter.Summarize(w.tt, w.query)
}

// WriteXLSX writes the rendered services as a spreadsheet.
func (w *Workbench) WriteXLSX(out io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tt == nil {
		return fmt.Errorf("no timetable loaded")
	}
	return w.exporter.WriteXLSX(out, w.tt)
}

// Statistics reports what the last filter run hid.
func (w *Workbench) Statistics() filtering.Statistics {
	return w.engine.GetStatistics()
}

// Timetable exposes the loaded timetable for read-only inspection.
func (w *Workbench) Timetable() *timetable.Timetable {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tt
}

// ValidWorkbookName reports whether an uploaded filename looks like a
// spreadsheet we can parse.
func ValidWorkbookName(name string) bool {
	return name != "" && strings.HasSuffix(strings.ToLower(name), ".xlsx")
}
