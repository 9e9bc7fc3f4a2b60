package plot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"gardi.app/cli/internal/core/filtering"
	"gardi.app/cli/internal/core/timetable"
)

// Each rake link (or service, in service mode) gets its own z-plane.
const zStep = 40

// Time-axis tick spacing in minutes.
const tickStepMinutes = 120

const (
	acColor       = "rgba(66,133,244,0.8)"
	nonACColor    = "rgba(90,90,90,0.8)"
	dimOpacity    = 0.35
	fullOpacity   = 1.0
	baseMarker    = 2.0
	dimMarker     = 1.0
	bigMarker     = 3.0
	figureWidth   = 1300
	figureHeight  = 700
	textColor     = "#CCCCCC"
)

// Builder turns a filtered timetable into a figure.
type Builder struct{}

// NewBuilder creates a figure builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles the 3D figure for the rendered portion of the timetable.
// In service mode every rendered service gets its own z-plane; otherwise
// each rendered rake link does.
func (b *Builder) Build(tt *timetable.Timetable, q filtering.Query) (*Figure, error) {
	var cycles []*timetable.RakeCycle
	for _, rc := range tt.RakeCycles {
		if len(rc.ServicePath) > 0 {
			cycles = append(cycles, rc)
		}
	}
	if len(cycles) == 0 {
		return nil, fmt.Errorf("no valid rake cycles to plot")
	}
	log.Debug("building figure", "cycles", len(cycles), "mode", q.Mode)

	type zLabel struct {
		z     float64
		label string
	}
	var (
		traces  []*Trace
		zLabels []zLabel
		zOffset float64
	)

	serviceMode := q.Mode == filtering.ModeService

	for _, rc := range cycles {
		if serviceMode {
			for _, svc := range rc.ServicePath {
				if !svc.Render {
					continue
				}
				tr := b.traceForEvents(svc.Events, zOffset, svc.NeedsAC, "lines+markers")
				if tr == nil {
					continue
				}
				name := fmt.Sprintf("%s-%s", rc.LinkName, svc.PrimaryID())
				tr.Name = name
				tr.HoverText = hoverText(name, svc.Events)
				traces = append(traces, tr)
				zLabels = append(zLabels, zLabel{z: zOffset, label: name})
				zOffset += zStep
			}
			continue
		}

		if !rc.Render {
			continue
		}
		mode := "lines+markers"
		if q.Mode == filtering.ModeStation {
			mode = "markers"
		}

		var events []*timetable.StationEvent
		for _, svc := range rc.ServicePath {
			if !svc.Render {
				continue
			}
			events = append(events, svc.Events...)
		}
		isAC := rc.Rake != nil && rc.Rake.IsAC
		tr := b.traceForEvents(events, zOffset, isAC, mode)
		if tr == nil {
			continue
		}
		tr.Name = rc.LinkName
		tr.HoverText = hoverText(rc.LinkName, renderedOf(events))
		traces = append(traces, tr)
		zLabels = append(zLabels, zLabel{z: zOffset, label: rc.LinkName})
		zOffset += zStep
	}

	xStart, xEnd := float64(timetable.DayStartMinutes), float64(timetable.DayEndMinutes)
	if (q.Mode == filtering.ModeService || q.Mode == filtering.ModeStation) &&
		q.TimeWindow != (filtering.TimeWindow{}) {
		xStart = q.TimeWindow.Start
		xEnd = q.TimeWindow.End + 90 // padding past the window edge
	}

	var tickVals []float64
	var tickText []string
	for t := xStart; t <= xEnd; t += tickStepMinutes {
		tickVals = append(tickVals, t)
		tickText = append(tickText, timetable.FormatMinutes(t))
	}

	stations := stationAxis()
	yVals := make([]float64, len(stations))
	yText := make([]string, len(stations))
	for i, s := range stations {
		yVals[i] = s.km
		yText[i] = s.name
	}

	zVals := make([]float64, len(zLabels))
	zText := make([]string, len(zLabels))
	for i, zl := range zLabels {
		zVals[i] = zl.z
		zText[i] = zl.label
	}

	zTitle := "Rake Cycle"
	if serviceMode {
		zTitle = "Service"
	}

	noAuto := false
	fig := &Figure{
		Data: traces,
		Layout: Layout{
			Font: Font{Size: 12, Color: textColor},
			Scene: Scene{
				XAxis: Axis{
					ShowGrid: true,
					Title:    "Time of Day",
					Range:    []float64{xStart, xEnd},
					TickVals: tickVals,
					TickText: tickText,
				},
				YAxis: Axis{
					ShowGrid:  true,
					TickVals:  yVals,
					TickText:  yText,
					Range:     []float64{yVals[0], yVals[len(yVals)-1]},
					AutoRange: &noAuto,
				},
				ZAxis: Axis{
					ShowGrid: true,
					Title:    zTitle,
					TickVals: zVals,
					TickText: zText,
				},
				Camera: Camera{
					Eye:        Vector{Z: 2.5},
					Up:         Vector{Y: 1},
					Projection: Projection{Type: "orthographic"},
				},
				AspectMode:  "manual",
				AspectRatio: Vector{X: 2.8, Y: 1.2, Z: 1.2},
			},
			Width:    figureWidth,
			Height:   figureHeight,
			Margin:   Margin{T: 0, L: 5, B: 5, R: 5},
			AutoSize: true,
		},
	}

	if q.Mode == filtering.ModeStation {
		// A flatter viewpoint reads better when the plot is all markers.
		fig.Layout.Scene.Camera.Eye = Vector{Z: 1.5}
		fig.Layout.Scene.AspectRatio = Vector{X: 3, Y: 1.5, Z: 1.2}
	}

	return fig, nil
}

// traceForEvents builds one trace from the renderable events, or nil when
// nothing is drawable.
func (b *Builder) traceForEvents(events []*timetable.StationEvent, z float64, isAC bool, mode string) *Trace {
	color := nonACColor
	if isAC {
		color = acColor
	}

	var xs, ys, zs []float64
	for _, ev := range events {
		if !ev.Render {
			continue
		}
		km, ok := timetable.DistanceMap[strings.ToUpper(strings.TrimSpace(ev.AtStation))]
		if !ok {
			continue
		}
		xs = append(xs, ev.AtTime)
		ys = append(ys, km)
		zs = append(zs, z)
	}
	if len(xs) == 0 {
		return nil
	}

	return &Trace{
		Type:      "scatter3d",
		X:         xs,
		Y:         ys,
		Z:         zs,
		Mode:      mode,
		Line:      &Style{Color: color},
		Marker:    &Style{Size: baseMarker, Color: color},
		HoverInfo: "text",
		Visible:   true,
	}
}

func renderedOf(events []*timetable.StationEvent) []*timetable.StationEvent {
	out := make([]*timetable.StationEvent, 0, len(events))
	for _, ev := range events {
		if ev.Render {
			out = append(out, ev)
		}
	}
	return out
}

// hoverText mirrors traceForEvents' event selection so labels line up with
// plotted points.
func hoverText(name string, events []*timetable.StationEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if !ev.Render {
			continue
		}
		if _, ok := timetable.DistanceMap[strings.ToUpper(strings.TrimSpace(ev.AtStation))]; ok {
			out = append(out, fmt.Sprintf("%s: %s @ %s",
				name, ev.AtStation, timetable.FormatMinutes(ev.AtTime)))
		}
	}
	return out
}

type stationTick struct {
	name string
	km   float64
}

// stationAxis returns corridor stations ordered by distance from Churchgate.
func stationAxis() []stationTick {
	out := make([]stationTick, 0, len(timetable.DistanceMap))
	for name, km := range timetable.DistanceMap {
		out = append(out, stationTick{name: name, km: km})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].km < out[j].km })
	return out
}

// HighlightLinks emphasizes the selected rake links: full opacity and larger
// markers for matches, dimmed everything else.
func (b *Builder) HighlightLinks(fig *Figure, selected []string) {
	if len(selected) == 0 {
		return
	}
	sel := make(map[string]bool, len(selected))
	for _, s := range selected {
		sel[s] = true
	}

	for _, tr := range fig.Data {
		link := tr.Name
		if i := strings.Index(link, "-"); i >= 0 {
			link = link[:i]
		}
		b.setEmphasis(tr, sel[link])
	}
}

// HighlightServices emphasizes the selected services in a service-mode
// figure, where traces are named link-service.
func (b *Builder) HighlightServices(fig *Figure, selected []string) {
	if len(selected) == 0 {
		return
	}
	sel := make(map[string]bool, len(selected))
	for _, s := range selected {
		sel[s] = true
	}

	for _, tr := range fig.Data {
		i := strings.Index(tr.Name, "-")
		if i < 0 {
			tr.Opacity = dimOpacity
			continue
		}
		b.setEmphasis(tr, sel[tr.Name[i+1:]])
	}
}

func (b *Builder) setEmphasis(tr *Trace, emphasized bool) {
	if emphasized {
		tr.Opacity = fullOpacity
		if tr.Marker != nil {
			tr.Marker.Size = bigMarker
		}
		return
	}
	tr.Opacity = dimOpacity
	if tr.Marker != nil {
		tr.Marker.Size = dimMarker
	}
}

// ResetEmphasis restores every trace to default styling and clears
// annotations.
func (b *Builder) ResetEmphasis(fig *Figure) {
	fig.Layout.Annotations = nil
	for _, tr := range fig.Data {
		tr.Opacity = fullOpacity
		if tr.Line != nil {
			tr.Line.Width = 2
		}
		if tr.Marker != nil {
			tr.Marker.Size = baseMarker
		}
	}
}

// BuildAnnotation describes a rake link in a corner text box.
func (b *Builder) BuildAnnotation(rc *timetable.RakeCycle) []Annotation {
	rakeDesc := "Unassigned"
	if rc.Rake != nil {
		kind := "Non-AC"
		if rc.Rake.IsAC {
			kind = "AC"
		}
		rakeDesc = fmt.Sprintf("%s (%d-car)", kind, rc.Rake.RakeSize)
	}
	return []Annotation{{
		X:           0.02,
		Y:           0.97,
		XRef:        "paper",
		YRef:        "paper",
		Align:       "left",
		BgColor:     "rgba(0,0,0,0.75)",
		BorderColor: "rgba(255,255,255,0.9)",
		BorderWidth: 2,
		BorderPad:   8,
		Font:        Font{Size: 14, Color: "white"},
		Text: fmt.Sprintf(
			"<b>Rake Link %s</b><br>Services: %d<br>Start: %s<br>End: %s<br>Distance: %d km<br>Rake: %s<br>",
			rc.LinkName, len(rc.ServicePath), rc.Start(), rc.End(), int(rc.LengthKm), rakeDesc),
	}}
}
